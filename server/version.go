package server

// Version is reported at startup and by the /version route. It is set at
// build time with -ldflags "-X github.com/ndlib/imageloader/server.Version=..."
var Version = "dev"
