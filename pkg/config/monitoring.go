package config

type Monitoring struct {
	Port             int    `fig:"port" default:"6601"`
	URLPrefix        string `fig:"urlprefix" default:"/server"`
	MetricEnabled    bool   `fig:"metricenabled"`
	ProfilingEnabled bool   `fig:"profilingenabled"`
}

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }
