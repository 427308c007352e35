// Package buildinfo holds values stamped in at link time.
package buildinfo

// Version is set with -ldflags "-X github.com/intura-ai/intura-go/internal/buildinfo.Version=..."
var Version = "dev"

// UserAgent identifies this SDK to the dashboard.
func UserAgent() string {
	return "intura-go/" + Version
}
