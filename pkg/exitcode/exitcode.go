// Package exitcode provides standardized exit codes for pkgsync
package exitcode

// Exit codes for pkgsync CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	InvalidName     = 3
	FileSystemError = 4
	NetworkError    = 5
	ResolutionError = 6
	PatchError      = 7
	PatcherNotFound = 8
	CacheError      = 9
	// Aborted follows the shell convention for SIGINT termination.
	Aborted = 130
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case InvalidName:
		return "Invalid package name"
	case FileSystemError:
		return "File system error"
	case NetworkError:
		return "Network error"
	case ResolutionError:
		return "Version resolution error"
	case PatchError:
		return "Patch application error"
	case PatcherNotFound:
		return "Patcher not found"
	case CacheError:
		return "Metadata cache error"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown error"
	}
}
