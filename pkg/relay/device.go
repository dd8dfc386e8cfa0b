package relay

import "strings"

// DeviceType is the class a connection is admitted under. It decides which
// group the connection's messages are relayed to.
type DeviceType string

const (
	DeviceMobile DeviceType = "mobile"
	DevicePC     DeviceType = "pc"
)

// Mobile indicators in User-Agent strings
var mobileKeywords = []string{
	"mobile",
	"android",
	"iphone",
	"ipad",
	"ipod",
	"expo",
	"reactnative",
}

// DetectDeviceType classifies a connection from the User-Agent header of its
// WebSocket handshake. An empty User-Agent is treated as a PC.
func DetectDeviceType(userAgent string) DeviceType {
	if userAgent == "" {
		return DevicePC
	}

	lower := strings.ToLower(userAgent)
	for _, keyword := range mobileKeywords {
		if strings.Contains(lower, keyword) {
			return DeviceMobile
		}
	}

	return DevicePC
}
