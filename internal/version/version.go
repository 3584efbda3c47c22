package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// ModelVersion identifies the physics model and calibration scheme. It is
// stored with every calibration record so persisted history can be matched
// to the equations that produced it.
const ModelVersion = "arrhenius-beer-lambert/3"

// String renders the build identity for CLI output.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ", model " + ModelVersion + ")"
}
