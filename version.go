package genops

// Version is the SDK version, overridable at build time with
// -ldflags "-X github.com/genops-ai/genops-go.Version=v1.2.3".
var Version = "0.1.0"
