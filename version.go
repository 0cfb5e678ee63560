package runix

// Version is the release of this module. BuildDate is set by the linker:
//
//	go build -ldflags "-X github.com/runix-lang/runix.BuildDate=$(date -u +%F)"
var (
	Version   = "0.3.0"
	BuildDate = "unknown"
)
