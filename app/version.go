package app

// Version is the framework version, overridable at link time.
var Version = "0.3.0"

// ServerName is the default value of the Server response header.
func ServerName() string {
	return "waterspout/" + Version
}
