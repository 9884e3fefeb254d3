package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/encoder"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/log"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/report"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/task"
)

// textPort prints every host, view and tracker call as one line.
type textPort struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *textPort) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *textPort) HideControl(c task.Control) { p.printf("control %s hidden", c) }
func (p *textPort) ShowControl(c task.Control) { p.printf("control %s shown", c) }
func (p *textPort) SetFeedback(text string, score, maxScore int) {
	p.printf("feedback %q %d/%d", text, score, maxScore)
}
func (p *textPort) RemoveFeedback()             { p.printf("feedback cleared") }
func (p *textPort) SetIntroduction(text string) { p.printf("question %q", text) }
func (p *textPort) SetContent(text string)      { p.printf("content %q", text) }

func (p *textPort) MarkAnswered(response string, correct bool) {
	p.printf("answered %q correct=%t", response, correct)
}
func (p *textPort) MarkShowingSolution(accepted []string) {
	p.printf("solution %q", strings.Join(accepted, "|"))
}
func (p *textPort) Restore()                   { p.printf("restored") }
func (p *textPort) ShowUnsupported(msg string) { p.printf("unsupported %q", msg) }

func (p *textPort) StateChanged(s task.ViewState) { p.printf("state %s", s) }
func (p *textPort) Outcome(st *report.Statement) {
	p.printf("statement verb=%s score=%d success=%t", st.Verb.Display["en-US"], st.Result.Score.Raw, st.Result.Success)
}

type testModeConfig struct {
	Exercise  *exercise.Config
	Snapshot  *task.Snapshot
	ExportDir string
	// Unsupported runs without a recognizer.
	Unsupported bool
}

// runTestMode drives one exercise from line commands on in, using a fake
// capture and a fake recognizer. It returns the final snapshot.
//
//	LISTEN [a|b]  start a turn that will be recognized as candidates a, b
//	STOP          end the turn and wait for evaluation
//	RETRY         reset the task
//	SOLUTION      show the solution
//	VIEW <state>  set the view state
//	STATE         print the snapshot and score
//	SLEEP <ms>
//	QUIT
func runTestMode(in io.Reader, out io.Writer, cfg testModeConfig) (task.Snapshot, error) {
	port := &textPort{w: out}
	fake := recognizer.NewFake(nil, nil)
	actx := audio.NewFakeContextPCM(nil, false)

	var rec recognizer.Recognizer = fake
	if cfg.Unsupported {
		rec = nil
	}
	sess := newSession(sessionConfig{
		Exercise:   cfg.Exercise,
		Audio:      actx,
		Probe:      audio.FakeProbe{Capture: true, Codecs: true, MIMEs: encoder.Supported()},
		Recognizer: rec,
		User:       "test",
		Snapshot:   cfg.Snapshot,
		ExportDir:  cfg.ExportDir,
		Host:       port,
		View:       port,
		Tracker:    port,
		OnSpeechError: func(err error) {
			port.printf("error %v", err)
		},
	})
	defer sess.Close()
	ctl := sess.ctl

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		log.Debugf("test command: %s", line)

		switch strings.ToUpper(cmd) {
		case "LISTEN":
			if arg != "" {
				fake.SetCandidates(strings.Split(arg, "|"))
			} else {
				fake.SetCandidates(nil)
			}
			ctl.Listen()
			chunk := speechChunk(100 * time.Millisecond)
			for _, c := range actx.Captures() {
				if c.Running() {
					c.Emit(chunk)
				}
			}
		case "STOP":
			ctl.StopListening()
			sess.Wait()
		case "RETRY":
			ctl.ResetTask()
		case "SOLUTION":
			ctl.ShowSolutions()
		case "VIEW":
			ctl.SetViewState(arg)
		case "STATE":
			data, err := json.Marshal(ctl.CurrentState())
			if err != nil {
				return task.Snapshot{}, err
			}
			port.printf("snapshot %s", data)
			port.printf("score %d/%d answered=%t", ctl.Score(), ctl.MaxScore(), ctl.IsAnswered())
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			sess.Wait()
			return ctl.CurrentState(), nil
		default:
			port.printf("unknown command %q", cmd)
		}
	}
	sess.Wait()
	return ctl.CurrentState(), scanner.Err()
}

// speechChunk is a 440 Hz tone loud enough to count as speech.
func speechChunk(d time.Duration) []byte {
	n := int(d * encoder.SampleRate / time.Second)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/encoder.SampleRate) * 0.3 * math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}
