package speech

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"nhooyr.io/websocket"

	"voxcall/audio"
	"voxcall/log"
)

const (
	deepgramListenURL = "wss://api.deepgram.com/v1/listen"
	deepgramDrainMax  = 2 * time.Second
)

type deepgramResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Deepgram streams microphone PCM to Deepgram's live endpoint and reports
// its transcripts as result events.
type Deepgram struct {
	apiKey   string
	endpoint string
	model    string
	audio    audio.Context
	device   *audio.DeviceInfo
	events   chan Event

	mu   sync.Mutex
	stop chan struct{}
}

func NewDeepgram(apiKey string, ctx audio.Context, device *audio.DeviceInfo) *Deepgram {
	return &Deepgram{
		apiKey:   apiKey,
		endpoint: deepgramListenURL,
		model:    "nova-3",
		audio:    ctx,
		device:   device,
		events:   make(chan Event, 64),
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Events() <-chan Event { return d.events }

func (d *Deepgram) Start(ctx context.Context, cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return fmt.Errorf("deepgram session already running")
	}
	stop := make(chan struct{})
	d.stop = stop
	go d.run(ctx, cfg, stop)
	return nil
}

func (d *Deepgram) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return
	}
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
}

func (d *Deepgram) listenURL(cfg Config) (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}
	q := endpoint.Query()
	q.Set("model", d.model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	q.Set("channels", strconv.Itoa(audio.Channels))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("smart_format", "true")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) emit(ctx context.Context, ev Event) {
	select {
	case d.events <- ev:
	case <-ctx.Done():
	}
}

func (d *Deepgram) run(ctx context.Context, cfg Config, stop chan struct{}) {
	defer func() {
		d.mu.Lock()
		d.stop = nil
		d.mu.Unlock()
		d.emit(ctx, Event{Type: EventEnd})
	}()

	endpoint, err := d.listenURL(cfg)
	if err != nil {
		log.Errorf("deepgram url: %v", err)
		d.emit(ctx, Event{Type: EventError, Error: ErrNetwork})
		return
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	connectStart := time.Now()
	conn, _, err := websocket.Dial(streamCtx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		log.Errorf("deepgram dial: %v", err)
		d.emit(ctx, Event{Type: EventError, Error: ErrNetwork})
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	log.Infof("deepgram connected in %dms", time.Since(connectStart).Milliseconds())

	capture, err := d.audio.NewCapture(d.device, audio.DefaultCaptureConfig())
	if err != nil {
		log.Errorf("deepgram capture: %v", err)
		d.emit(ctx, Event{Type: EventError, Error: ErrAudioCapture})
		return
	}
	defer capture.Close()

	audioCh := make(chan []byte, 128)
	capture.SetCallback(func(data []byte, _ uint32) {
		pcm := make([]byte, len(data))
		copy(pcm, data)
		select {
		case audioCh <- pcm:
		default:
		}
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		log.Errorf("deepgram capture start: %v", err)
		d.emit(ctx, Event{Type: EventError, Error: ErrNotAllowed})
		return
	}
	d.emit(ctx, Event{Type: EventStart})

	var stopping sync.Once
	finish := make(chan struct{})
	requestStop := func() {
		stopping.Do(func() { close(finish) })
	}

	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		stopCh := stop
		for {
			select {
			case pcm := <-audioCh:
				if err := conn.Write(streamCtx, websocket.MessageBinary, pcm); err != nil {
					return
				}
			case <-stopCh:
				stopCh = nil
				requestStop()
			case <-finish:
				capture.Stop()
				capture.ClearCallback()
				conn.Write(streamCtx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
				// Deepgram closes the socket once the final results are flushed.
				time.AfterFunc(deepgramDrainMax, cancel)
				return
			}
		}
	}()

	var res results
recv:
	for {
		_, data, err := conn.Read(streamCtx)
		if err != nil {
			select {
			case <-finish:
			default:
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					log.Errorf("deepgram read: %v", err)
					d.emit(ctx, Event{Type: EventError, Error: ErrNetwork})
				}
				requestStop()
			}
			break recv
		}

		var resp deepgramResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Warnf("deepgram message parse: %v", err)
			continue
		}
		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		final := resp.IsFinal || resp.SpeechFinal
		text := resp.Channel.Alternatives[0].Transcript
		if !final && (!cfg.InterimResults || text == "") {
			continue
		}
		if final && text == "" && !res.pending {
			continue
		}
		d.emit(ctx, res.update(Segment{Transcript: text, IsFinal: final}))
		if final && text != "" && !cfg.Continuous {
			requestStop()
		}
	}

	select {
	case <-sendDone:
	case <-time.After(deepgramDrainMax):
		log.Warn("deepgram sender drain timeout")
	}
}
