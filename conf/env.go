package conf

// EnvironmentEnum deployment environment
type EnvironmentEnum int

const (
	LocalEnvironmentEnum EnvironmentEnum = iota + 1
	TestnetEnvironmentEnum
	MainnetEnvironmentEnum
	ExampleEnvironmentEnum
)

// SystemEnvironmentEnum selected by the -env flag
var SystemEnvironmentEnum = LocalEnvironmentEnum

// ConfigPath overrides the environment YAML when set
var ConfigPath string

// GetYaml returns the config file for the current environment
func GetYaml() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	switch SystemEnvironmentEnum {
	case TestnetEnvironmentEnum:
		return "./conf/conf_testnet.yaml"
	case MainnetEnvironmentEnum:
		return "./conf/conf_mainnet.yaml"
	case ExampleEnvironmentEnum:
		return "./conf/conf_example.yaml"
	default:
		return "./conf/conf_loc.yaml"
	}
}
