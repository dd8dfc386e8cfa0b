package adb

import "strings"

// parseDevices parses `adb devices -l` output. Only entries in the "device"
// state are returned; offline and unauthorized devices are skipped.
func parseDevices(out string) []Device {
	var devices []Device

	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i, line := range lines {
		if i == 0 {
			// "List of devices attached" header
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "device" {
			continue
		}

		device := Device{Serial: fields[0]}
		for _, field := range fields[2:] {
			switch {
			case strings.HasPrefix(field, "model:"):
				device.Model = strings.TrimPrefix(field, "model:")
			case strings.HasPrefix(field, "product:"):
				device.Product = strings.TrimPrefix(field, "product:")
			case strings.HasPrefix(field, "device:"):
				device.Device = strings.TrimPrefix(field, "device:")
			case strings.HasPrefix(field, "transport_id:"):
				device.TransportID = strings.TrimPrefix(field, "transport_id:")
			}
		}
		devices = append(devices, device)
	}

	return devices
}

// parseRouteSource extracts the "src" address from `ip route get` or
// `ip addr show` output.
func parseRouteSource(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "src") {
			continue
		}
		fields := strings.Fields(line)
		for i, field := range fields {
			if field == "src" && i+1 < len(fields) {
				return fields[i+1]
			}
		}
	}
	return ""
}
