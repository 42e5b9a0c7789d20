//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"voxcall/log"
)

var (
	rendered  map[Cue][]int16
	soundOnce sync.Once
)

func render() {
	rendered = make(map[Cue][]int16, len(tones))
	for c := range tones {
		rendered[c] = samples(c, 2)
	}
}

func play(c Cue) {
	soundOnce.Do(render)
	go playSamples(rendered[c])
}

func playSamples(s []int16) {
	if len(s) == 0 {
		return
	}
	client, err := pulse.NewClient()
	if err != nil {
		log.Debugf("beep: pulse unavailable: %v", err)
		return
	}
	defer client.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(s) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, s[pos:])
		pos += n
		return n, nil
	})
	stream, err := client.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}
