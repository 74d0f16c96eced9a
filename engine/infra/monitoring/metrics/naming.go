package metrics

import "strings"

// Prefix namespaces every metric exported by the service.
const Prefix = "sigauth"

// MetricName prefixes name unless it already carries the prefix.
func MetricName(name string) string {
	if strings.HasPrefix(name, Prefix+"_") {
		return name
	}
	return Prefix + "_" + name
}

// MetricNameWithSubsystem builds prefix_subsystem_name, skipping empty parts.
func MetricNameWithSubsystem(subsystem, name string) string {
	subsystem = strings.Trim(subsystem, "_")
	name = strings.Trim(name, "_")
	if subsystem == "" {
		return MetricName(name)
	}
	if name == "" {
		return MetricName(subsystem)
	}
	return MetricName(subsystem + "_" + name)
}
