// Package config loads the client's YAML configuration, following the
// teacher's config.go shape: a plain struct, a DefaultConfig value, and a
// Load that tolerates a missing file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named throughout the spec: listen ports, slot
// and MCN ceilings, timing constants for segment sizing and auto-priority,
// and flood/rate limits.
type Config struct {
	// TCPPort is the plain C-C listen port; TLSPort the TLS one. UDPPort
	// serves both the hub-to-client UDP search protocol and SUDP.
	TCPPort uint16 `yaml:"tcp_port"`
	TLSPort uint16 `yaml:"tls_port"`
	UDPPort uint16 `yaml:"udp_port"`

	DataDir     string `yaml:"data_dir"`
	Database    string `yaml:"database"`
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`

	// Slots
	MaxSlots             int `yaml:"max_slots"`
	ExtraSlots           int `yaml:"extra_slots"`
	ExtraPartialSlots    int `yaml:"extra_partial_slots"`
	MaxSmallFileSlots    int `yaml:"max_small_file_slots"`
	MiniSlotSize         int64 `yaml:"mini_slot_size"`
	MaxMCNConnsPerUser   int `yaml:"max_mcn_conns_per_user"`
	SpeedLimitGraceBps   int64 `yaml:"speed_limit_grace_bps"`

	// Download engine timing (§4.5.4, §4.5.8, §4.5.9)
	SegmentTime           time.Duration `yaml:"segment_time"`
	AutoPriorityInterval  time.Duration `yaml:"auto_priority_interval"`
	PSRQueryInterval      time.Duration `yaml:"psr_query_interval"`
	PSRMaxPending         int           `yaml:"psr_max_pending"`
	RecentBundleWindow    time.Duration `yaml:"recent_bundle_window"`
	BundleSaveDebounce    time.Duration `yaml:"bundle_save_debounce"`

	// Rate limiting and flood control (§5)
	UploadRateLimitBps   int64         `yaml:"upload_rate_limit_bps"`
	DownloadRateLimitBps int64         `yaml:"download_rate_limit_bps"`
	FloodMinorThreshold  int           `yaml:"flood_minor_threshold"`
	FloodSevereThreshold int           `yaml:"flood_severe_threshold"`
	FloodWindow          time.Duration `yaml:"flood_window"`

	// Search (§4.7)
	SUDPKeyTTL      time.Duration `yaml:"sudp_key_ttl"`
	HubSearchMinGap time.Duration `yaml:"hub_search_min_gap"`

	// Hybrid connectivity
	AllowIPv4In bool `yaml:"allow_ipv4_in"`
	AllowIPv6In bool `yaml:"allow_ipv6_in"`
	NATTEnabled bool `yaml:"natt_enabled"`
}

// DefaultConfig mirrors the reference implementation's shipped defaults
// (SETTING() defaults in SettingsManager, values corroborated against
// ConnectionManager.h / UploadManager.h / QueueManager.cpp constants).
var DefaultConfig = Config{
	TCPPort: 3000,
	TLSPort: 3001,
	UDPPort: 3000,

	DataDir:  "./data",
	Database: "./data/airdcpp.db",

	MaxSlots:           3,
	ExtraSlots:         3,
	ExtraPartialSlots:  1,
	MaxSmallFileSlots:  8,
	MiniSlotSize:       64 * 1024,
	MaxMCNConnsPerUser: 3,
	SpeedLimitGraceBps: 10 * 1024,

	SegmentTime:          60 * time.Second,
	AutoPriorityInterval: 10 * time.Minute,
	PSRQueryInterval:     5 * time.Minute,
	PSRMaxPending:        10,
	RecentBundleWindow:   time.Hour,
	BundleSaveDebounce:   20 * time.Second,

	UploadRateLimitBps:   0, // 0 = unlimited
	DownloadRateLimitBps: 0,
	FloodMinorThreshold:  8,
	FloodSevereThreshold: 50,
	FloodWindow:          60 * time.Second,

	SUDPKeyTTL:      15 * time.Minute,
	HubSearchMinGap: 5 * time.Second,

	AllowIPv4In: true,
	AllowIPv6In: true,
	NATTEnabled: true,
}

// Load reads the YAML file at path, merging it on top of DefaultConfig. A
// missing file is not an error: the defaults are returned unchanged, the way
// the teacher's LoadConfig treats os.IsNotExist.
func Load(path string) (*Config, error) {
	c := DefaultConfig
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
