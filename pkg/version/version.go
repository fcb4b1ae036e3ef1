package version

// Version is the current blockmap version. It is a var so release builds can
// set it:
//
//	go build -ldflags "-X github.com/vanderheijden86/blockmap/pkg/version.Version=v0.3.0" ./cmd/bm
var Version = "v0.1.0"
