package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SignalURL string
	APIAddr   string

	STUNServers    []string
	TURNServers    []string
	TURNUsername   string
	TURNCredential string
	ForceTURN      bool

	// ICE liveness timeouts applied to every session.
	ICEDisconnectedTimeout time.Duration
	ICEFailedTimeout       time.Duration
	ICEKeepaliveInterval   time.Duration

	// Delay before reconnecting when the previous session was torn down
	// mid-negotiation (signaling state not stable).
	SettleDelay time.Duration

	VideoWidth     int
	VideoHeight    int
	VideoFrameRate float64
	VideoBitRate   int

	PreviewPath      string
	EventHistorySize int
}

func Load() *Config {
	return &Config{
		SignalURL: getEnv("SIGNAL_URL", "ws://localhost:8443/ws"),
		APIAddr:   getEnv("API_ADDR", ":9091"),

		STUNServers:    getEnvList("STUN_SERVERS", "stun:stun.l.google.com:19302"),
		TURNServers:    getEnvList("TURN_SERVERS", ""),
		TURNUsername:   getEnv("TURN_USERNAME", ""),
		TURNCredential: getEnv("TURN_CREDENTIAL", ""),
		ForceTURN:      getEnvBool("FORCE_TURN", false),

		ICEDisconnectedTimeout: getEnvDuration("ICE_DISCONNECTED_TIMEOUT", 5*time.Second),
		ICEFailedTimeout:       getEnvDuration("ICE_FAILED_TIMEOUT", 25*time.Second),
		ICEKeepaliveInterval:   getEnvDuration("ICE_KEEPALIVE_INTERVAL", 4*time.Second),

		SettleDelay: getEnvDuration("RESET_SETTLE_DELAY", 3*time.Second),

		VideoWidth:     getEnvInt("VIDEO_WIDTH", 640),
		VideoHeight:    getEnvInt("VIDEO_HEIGHT", 480),
		VideoFrameRate: float64(getEnvInt("VIDEO_FRAMERATE", 30)),
		VideoBitRate:   getEnvInt("VIDEO_BITRATE", 500_000),

		PreviewPath:      getEnv("PREVIEW_PATH", "preview.ivf"),
		EventHistorySize: getEnvInt("EVENT_HISTORY_SIZE", 256),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key, fallback string) []string {
	v := getEnv(key, fallback)
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
