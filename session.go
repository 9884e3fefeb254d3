package main

import (
	"github.com/Klasmart-Engineering/h5p-speak-the-words/audio"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/beep"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/eventbus"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/exercise"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/recognizer"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/report"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/speech"
	"github.com/Klasmart-Engineering/h5p-speak-the-words/task"
)

// sessionConfig is everything one exercise run needs. Recognizer may be
// nil, in which case the exercise shows the unsupported notice.
type sessionConfig struct {
	Exercise   *exercise.Config
	Audio      audio.Context
	Device     *audio.DeviceInfo
	Probe      audio.Probe
	Recognizer recognizer.Recognizer
	User       string
	Snapshot   *task.Snapshot
	ExportDir  string

	Host    task.Host
	View    task.View
	Tracker task.Tracker

	OnSpeechState func(speech.State)
	OnSpeechError func(error)
}

// session wires the event bus between the capture coordinator, the speech
// engine, the controller and the optional export writer.
type session struct {
	bus    *eventbus.Bus
	coord  *audio.Coordinator
	engine *speech.Engine
	ctl    *task.Controller
	export *exportWriter
	closer []func()
}

func newSession(cfg sessionConfig) *session {
	ex := cfg.Exercise
	s := &session{bus: eventbus.New()}

	if cfg.ExportDir != "" {
		s.export = newExportWriter(cfg.ExportDir)
		s.closer = append(s.closer, s.export.Attach(s.bus))
	}

	if cfg.Recognizer != nil {
		s.coord = audio.NewCoordinator(audio.CoordinatorConfig{
			Context:      cfg.Audio,
			Device:       cfg.Device,
			Probe:        cfg.Probe,
			ContentID:    ex.ContentID,
			SubContentID: ex.SubContentID,
		})
		s.coord.Attach(s.bus)

		onState := func(st speech.State) {
			if st == speech.StateRecognizing {
				beep.PlayEnd()
			}
			if cfg.OnSpeechState != nil {
				cfg.OnSpeechState(st)
			}
		}
		s.engine = speech.New(speech.Options{
			Context:    cfg.Audio,
			Device:     cfg.Device,
			Recognizer: cfg.Recognizer,
			Normalizer: ex.Normalizer(),
			Language:   ex.InputLanguage.String(),
			OnState:    onState,
			OnError:    cfg.OnSpeechError,
		})
		s.engine.Attach(s.bus)
		s.closer = append(s.closer, beep.Attach(s.bus))
	}

	s.ctl = task.New(task.Options{
		Config:     ex,
		Bus:        s.bus,
		Recognizer: cfg.Recognizer,
		Host:       cfg.Host,
		View:       cfg.View,
		Tracker:    cfg.Tracker,
		Builder:    report.NewBuilder(ex, report.NewActor(cfg.User)),
		Snapshot:   cfg.Snapshot,
	})
	return s
}

// CaptureEnabled reports whether answers are also recorded for export.
func (s *session) CaptureEnabled() bool {
	return s.coord != nil && s.coord.Enabled()
}

// Wait blocks until pending recognitions have been evaluated.
func (s *session) Wait() {
	if s.engine != nil {
		s.engine.Wait()
	}
}

func (s *session) Close() {
	s.ctl.Close()
	if s.engine != nil {
		s.engine.Close()
	}
	if s.coord != nil {
		s.coord.Close()
	}
	for _, c := range s.closer {
		c()
	}
}
