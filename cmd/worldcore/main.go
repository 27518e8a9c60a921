// Command worldcore runs the authoritative game-world server daemon:
// configuration, structured logging, the tick-driven world simulator, the
// WebSocket transport, and the read-only operator HTTP surface, which
// listens on its own status address.
//
// Startup sequence: Config -> Logging -> Hub -> Router -> Server, with a
// --daemon fork/setsid/PID-file path for running detached.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/mux"

	"worldcore/config"
	"worldcore/logging"
	"worldcore/router"
	"worldcore/server"
)

func main() {
	help := flag.Bool("help", false, "Show help message")
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: configuration initialization failed: %v\n", err)
		os.Exit(2)
	}

	if !flag.Parsed() {
		flag.Parse()
	}
	if *help {
		printHelp()
		return
	}

	if err := logging.Init(config.GetLogDir(), logging.LevelFromString(config.GetLogLevel()), config.GetTraceModules()); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.Default()

	if config.GetDaemon() {
		if err := daemonize(config.GetPIDFile()); err != nil {
			log.Fatal("failed to daemonize process", map[string]interface{}{"error": err.Error()})
		}
		defer os.Remove(config.GetPIDFile())
	}

	hub, err := server.NewHub(log)
	if err != nil {
		log.Fatal("failed to construct world hub", map[string]interface{}{"error": err.Error()})
	}
	defer hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	hub.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/ws", hub.ServeWS)

	statusRouter := mux.NewRouter()
	router.Setup(statusRouter, hub.World, hub.Sessions, hub.Dispatcher)
	statusServer := &http.Server{Addr: config.GetStatusAddr(), Handler: statusRouter}
	go func() {
		<-ctx.Done()
		statusServer.Close()
	}()
	go func() {
		if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status server failed", map[string]interface{}{"address": config.GetStatusAddr(), "error": err.Error()})
		}
	}()

	if !config.GetDaemon() {
		go runOperatorConsole(ctx, hub, log, stop)
	}

	log.Info("worldcore daemon starting", map[string]interface{}{
		"server_name": config.GetServerName(),
		"tick_rate":   config.GetTickRate(),
	})

	bindAddr := fmt.Sprintf("%s:%d", config.GetHost(), config.GetPort())
	httpServer := &http.Server{Addr: bindAddr, Handler: r}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	log.Info("listening", map[string]interface{}{"address": bindAddr, "status_address": config.GetStatusAddr()})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed to start", map[string]interface{}{"address": bindAddr, "error": err.Error()})
	}
}

// runOperatorConsole implements §6's Operator CLI: a line-oriented stdin
// console accepting "status", "players", "stop", and every admin
// interpreter command (executed with operator privilege, executor id 0).
// Skipped entirely in --daemon mode since stdin isn't attached to anything
// once the process has detached from its controlling terminal.
func runOperatorConsole(ctx context.Context, hub *server.Hub, log *logging.Logger, shutdown context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "stop":
			fmt.Println("stopping...")
			shutdown()
			return
		case "status":
			fmt.Printf("tick=%d players=%d/%d peers=%d\n",
				hub.World.CurrentTick(), hub.Sessions.AuthenticatedCount(), config.GetMaxPlayers(), hub.Dispatcher.PeerCount())
		case "players":
			for _, s := range hub.Sessions.All() {
				fmt.Printf("  %s  player=%d  state=%s\n", s.SessionID, s.PlayerID, s.State())
			}
		default:
			result := hub.Admin.ExecuteAsOperator(line)
			fmt.Println(result.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn("operator console read error", map[string]interface{}{"error": err.Error()})
	}
}

func printHelp() {
	fmt.Println("worldcore - authoritative multiplayer game-world server")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  worldcore [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  --daemon          Run as a background daemon")
	fmt.Println("  --pid-file PATH   PID file path")
	fmt.Println("  --host HOST       Host to bind to")
	fmt.Println("  --port PORT       Port to bind to")
	fmt.Println("  --help            Show this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  worldcore")
	fmt.Println("  worldcore --daemon --pid-file /var/run/worldcore.pid")
	fmt.Println("  worldcore --host 0.0.0.0 --port 7777")
}

// daemonize forks a detached child that continues running after the
// parent exits, writing the child's pid to pidFile, then in the child
// starts a new session and redirects the standard streams to /dev/null.
func daemonize(pidFile string) error {
	const daemonChildEnv = "WORLDCORE_DAEMON_CHILD"
	if os.Getenv(daemonChildEnv) == "" {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable path: %w", err)
		}

		// The child keeps --daemon so it reaches this function again; the
		// environment marker sends it to the setsid branch below.
		cmd := &exec.Cmd{
			Path: executable,
			Args: append([]string{executable}, os.Args[1:]...),
			Env:  append(os.Environ(), daemonChildEnv+"=1"),
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start daemon process: %w", err)
		}

		file, err := os.Create(pidFile)
		if err != nil {
			cmd.Process.Kill()
			return fmt.Errorf("write pid file: %w", err)
		}
		fmt.Fprintf(file, "%d\n", cmd.Process.Pid)
		file.Close()

		os.Exit(0)
	}

	if _, err := syscall.Setsid(); err != nil {
		return fmt.Errorf("create new session: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("change working directory: %w", err)
	}

	devNull, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open /dev/null: %w", err)
	}
	defer devNull.Close()
	syscall.Dup2(int(devNull.Fd()), int(os.Stdin.Fd()))
	syscall.Dup2(int(devNull.Fd()), int(os.Stdout.Fd()))
	syscall.Dup2(int(devNull.Fd()), int(os.Stderr.Fd()))

	return nil
}
