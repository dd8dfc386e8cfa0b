package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDeviceType(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      DeviceType
	}{
		{"empty user agent defaults to pc", "", DevicePC},
		{"react native app", "ReactNative/0.72 (iPhone)", DeviceMobile},
		{"expo client", "Expo/49.0.0 CFNetwork/1408.0.4 Darwin/22.5.0", DeviceMobile},
		{"android browser", "Mozilla/5.0 (Linux; Android 13; Pixel 7) Mobile Safari/537.36", DeviceMobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 16_5 like Mac OS X)", DeviceMobile},
		{"ipod", "Mozilla/5.0 (iPod touch; CPU iPhone OS 15_0 like Mac OS X)", DeviceMobile},
		{"windows desktop", "Mozilla/5.0 (Windows NT 10.0)", DevicePC},
		{"mac desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15", DevicePC},
		{"curl", "curl/8.1.2", DevicePC},
		{"case insensitive match", "MyApp (ANDROID build)", DeviceMobile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDeviceType(tt.userAgent))
		})
	}
}
