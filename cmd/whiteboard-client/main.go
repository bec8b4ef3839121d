package main

import (
	"context"
	"errors"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/config"
	"github.com/smtart/whiteboard-app/internal/logging"
	"github.com/smtart/whiteboard-app/internal/protocol"
	"github.com/smtart/whiteboard-app/internal/replica"
)

var (
	cfgFile    string
	serverURL  string
	roomName   string
	memberName string
	demoStroke bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "whiteboard-client",
		Short: "Headless whiteboard room client for smoke runs",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "ws://127.0.0.1:8080/ws", "Websocket endpoint of the sync service")
	cmd.PersistentFlags().StringVar(&roomName, "room", "lobby", "Room to join")
	cmd.PersistentFlags().StringVar(&memberName, "name", "", "Display name (blank for the server default)")
	cmd.PersistentFlags().BoolVar(&demoStroke, "demo-stroke", false, "Draw one stroke through the delta scheme, then undo it")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("history-depth", defaults.GetInt("history.depth"), "Undo history depth")

	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "history.depth", "history-depth")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// connEmitter serializes outbound frames onto one websocket connection.
type connEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *connEmitter) Emit(message protocol.Message) error {
	data, err := message.Encode()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return e.conn.WriteMessage(websocket.TextMessage, data)
}

// session guards the replica: inbound frames and local demo actions run
// on different goroutines.
type session struct {
	mu      sync.Mutex
	replica *replica.Replica
}

func runClient(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancelDial := context.WithTimeout(signalCtx, 10*time.Second)
	defer cancelDial()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, serverURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	mirror, err := replica.NewReplica(replica.ReplicaConfig{
		Emitter:      &connEmitter{conn: conn},
		IDProvider:   board.NewUUIDProvider(),
		Logger:       logger,
		HistoryDepth: appConfig.HistoryDepth,
	})
	if err != nil {
		return err
	}
	sess := &session{replica: mirror}

	roomID, err := board.NewRoomID(roomName)
	if err != nil {
		return err
	}
	if err := mirror.Join(roomID, memberName); err != nil {
		return err
	}
	logger.Info("joined room", zap.String("room_id", roomID.String()))

	readErr := make(chan error, 1)
	go readLoop(conn, sess, logger, readErr)

	if demoStroke {
		go func() {
			if err := runDemoStroke(sess, logger); err != nil {
				logger.Warn("demo stroke failed", zap.Error(err))
			}
		}()
	}

	select {
	case <-signalCtx.Done():
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		return nil
	case err := <-readErr:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	}
}

func readLoop(conn *websocket.Conn, sess *session, logger *zap.Logger, readErr chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		message, err := protocol.Decode(data)
		if err != nil {
			logger.Debug("undecodable frame", zap.Error(err))
			continue
		}
		logger.Info("received", zap.String("type", string(message.Type)))
		sess.mu.Lock()
		sess.replica.Apply(message)
		sess.mu.Unlock()
	}
}

// runDemoStroke waits for the room snapshot, draws one sine-wave stroke
// through suffix deltas, commits it, then undoes it so the room is left
// as found.
func runDemoStroke(sess *session, logger *zap.Logger) error {
	if err := waitForSnapshot(sess, 5*time.Second); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	stream, err := sess.replica.StartStroke(board.Style{StrokeColor: "#e74c3c", StrokeWidth: 3, Opacity: 1})
	if err != nil {
		return err
	}
	for i := 0; i <= 20; i++ {
		x := float64(i) * 10
		stream.Extend(board.Point{X: x, Y: 100 + 40*math.Sin(x/40)})
		if i%5 == 4 {
			if err := stream.Flush(); err != nil {
				return err
			}
		}
	}
	committed, err := stream.Finish()
	if err != nil {
		return err
	}
	logger.Info("demo stroke finished",
		zap.String("element_id", stream.ID().String()),
		zap.Bool("committed", committed))

	undone, err := sess.replica.Undo()
	if err != nil {
		return err
	}
	logger.Info("demo stroke undone", zap.Bool("undone", undone))
	return nil
}

func waitForSnapshot(sess *session, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		sess.mu.Lock()
		ready := sess.replica.YourID() != ""
		sess.mu.Unlock()
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("room snapshot never arrived")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
