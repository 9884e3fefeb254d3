package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/beep"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/doctor"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/shutdown"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/speech"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/task"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	exerciseFlag := flag.String("exercise", "", "Exercise file (YAML or JSON)")
	stateFlag := flag.String("state", "", "Snapshot file to restore on start and save on quit")
	exportFlag := flag.String("export", "", "Directory to save recorded answers in (disabled when empty)")
	providerFlag := flag.String("provider", "", "Speech provider: groq or deepgram (default: whichever has an API key)")
	deviceFlag := flag.String("device", "", "Use named microphone device (substring match)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, fake audio and recognizer)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("speak-the-words %s\n", version)
		return 0
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *doctorFlag {
		return runDoctor(*exerciseFlag, *providerFlag, *deviceFlag)
	}

	if *exerciseFlag == "" {
		fmt.Fprintln(os.Stderr, "Usage: speak-the-words -exercise <file> [-state <file>] [-export <dir>]")
		return 2
	}
	ex, err := exercise.Load(*exerciseFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	snap, err := loadSnapshot(*stateFlag)
	if err != nil {
		log.Warnf("ignoring snapshot: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: ignoring snapshot: %v\n", err)
	}

	if *testFlag {
		beep.Disable()
		log.SessionStart(ex.ContentID, "fake", ex.InputLanguage.String())
		final, err := runTestMode(os.Stdin, os.Stdout, testModeConfig{
			Exercise:  ex,
			Snapshot:  snap,
			ExportDir: *exportFlag,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return finish(*stateFlag, final)
	}

	// Without a recognizer the exercise still renders its notice.
	rec, err := recognizer.New(*providerFlag)
	if err != nil {
		log.Warnf("recognizer unavailable: %v", err)
	} else {
		rec.SetLanguage(ex.InputLanguage.String())
	}
	provider := "none"
	if rec != nil {
		provider = rec.Name()
	}
	log.SessionStart(ex.ContentID, provider, ex.InputLanguage.String())

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		return 1
	}
	defer actx.Close()

	device, err := pickDevice(actx, *deviceFlag, *setupFlag)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		fmt.Println("Falling back to default device")
	}
	if device != nil {
		log.Info("recording_device: " + device.Name)
		if audio.IsBluetooth(device.Name) {
			log.Warn("bluetooth microphone selected")
		}
	}

	go beep.Init()

	app := &tuiApp{
		title:    ex.Title,
		strings:  ex.Strings(),
		accepted: ex.AcceptedAnswers,
	}
	tuiMu.Lock()
	tuiProgram = NewTUIProgram(app)
	tuiMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
	}()
	<-tuiReady

	port := tuiPort{send: tuiSend}
	sess := newSession(sessionConfig{
		Exercise:   ex,
		Audio:      actx,
		Device:     device,
		Probe:      audio.NewProbe(actx),
		Recognizer: rec,
		User:       currentUser(),
		Snapshot:   snap,
		ExportDir:  *exportFlag,
		Host:       port,
		View:       port,
		Tracker:    port,
		OnSpeechState: func(s speech.State) {
			tuiSend(speechStateMsg{s})
		},
		OnSpeechError: func(err error) {
			tuiSend(statusMsg{Text: err.Error(), Error: true})
		},
	})
	app.session = sess
	tuiSend(readyMsg{})

	stopWatch := shutdown.Watch(func(s os.Signal) {
		log.Info("signal_received: " + s.String())
		tuiProgram.Quit()
	})
	<-done
	stopWatch()
	final := sess.ctl.CurrentState()
	sess.Close()
	return finish(*stateFlag, final)
}

func finish(statePath string, final task.Snapshot) int {
	log.SessionEnd(len(final.LastInterpretations))
	if err := saveSnapshot(statePath, final); err != nil {
		log.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// pickDevice resolves -device, then -setup; nil means the system default.
func pickDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if name != "" {
		return audio.FindDevice(ctx, name)
	}
	if setup {
		return audio.SelectDevice(ctx)
	}
	return nil, nil
}

func runDoctor(exercisePath, provider, deviceName string) int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		actx = nil
	} else {
		defer actx.Close()
	}
	var device *audio.DeviceInfo
	if actx != nil && deviceName != "" {
		if device, err = audio.FindDevice(actx, deviceName); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	rec, err := recognizer.New(provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return doctor.Run(doctor.Options{
		In:           os.Stdin,
		Out:          os.Stdout,
		ExercisePath: exercisePath,
		Context:      actx,
		Device:       device,
		Recognizer:   rec,
	})
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
