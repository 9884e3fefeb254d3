package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	statementsFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

const (
	diagFileName       = "diagnostics_log.txt"
	statementsFileName = "statements_log.jsonl"
)

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	statementsFile, err = os.OpenFile(filepath.Join(dir, statementsFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if statementsFile != nil {
		statementsFile.Close()
		statementsFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(contentID, provider, language string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("content_id", contentID).
		Str("provider", provider).
		Str("language", language).
		Msg("session_start")
}

func SessionEnd(turns int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("turns", turns).
		Msg("session_end")
}

func ViewState(from, to string, restored bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("from", from).
		Str("to", to).
		Bool("restored", restored).
		Msg("view_state")
}

func Outcome(response string, score, maxScore int, success bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("response", response).
		Int("score", score).
		Int("max_score", maxScore).
		Bool("success", success).
		Msg("outcome")
}

func Recognition(provider string, candidates int, audioS, totalMs float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Int("candidates", candidates).
		Float64("audio_s", audioS).
		Float64("total_ms", totalMs).
		Msg("recognition")
}

func Export(mime string, sizeKB, audioS float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mime", mime).
		Float64("size_kb", sizeKB).
		Float64("audio_s", audioS).
		Msg("audio_export")
}

// Statement appends v as one JSON line to the statements log.
func Statement(v any) {
	if !logReady {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		diagLog.Error().Err(err).Msg("statement_marshal")
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if statementsFile == nil {
		return
	}
	statementsFile.Write(append(data, '\n'))
}
