package show

import (
	"fmt"
	"math/rand/v2"

	"qlux/lib/curve"
	"qlux/lib/patch"
)

var trackNamePool = []string{
	"Wash", "Fill Light", "Spots", "Backlight", "Cyc",
	"Movers", "Strobes", "Ambience", "Specials", "Follow Spot",
	"Floor", "Truss", "Audience", "LED Wall", "Effects",
}

var lookNamePool = []string{
	"Wash", "Focus", "Spot", "Amber", "Blue", "Cool", "Warm",
	"Flood", "Blackout", "Dim", "Bright", "Sunrise", "Sunset",
}

var colorPool = []string{
	"#000000", "#ffffff", "#ff0000", "#00ff00", "#0000ff",
	"#ffbf00", "#00ffff", "#ff00ff", "#ff4500", "#8a2be2",
}

var waveformPool = []Waveform{WaveSine, WaveSquare, WaveSaw, WaveRamp, WaveStrobe}

// GenerateMock builds a deterministic show of RGBW wash fixtures with
// numCues cues spread over numTracks tracks, useful for benchmarks and demos.
func GenerateMock(numTracks, numFixtures, numCues int) *Document {
	rng := rand.New(rand.NewPCG(42, 0))
	doc := &Document{Name: "mock"}

	var fixtureIDs []string
	for i := range numFixtures {
		id := fmt.Sprintf("wash_%d", i)
		addr := 1 + i*6
		if addr+5 > 512 {
			break
		}
		fixtureIDs = append(fixtureIDs, id)
		doc.Patch.Fixtures = append(doc.Patch.Fixtures, patch.Fixture{
			ID:       id,
			Address:  addr,
			Channels: 6,
			Functions: map[int][]string{
				0: {"Dimmer"},
				1: {"Red"},
				2: {"Green"},
				3: {"Blue"},
				4: {"Zoom"},
				5: {"Strobe"},
			},
		})
	}

	names := make([]string, len(trackNamePool))
	copy(names, trackNamePool)
	rng.Shuffle(len(names), func(i, j int) {
		names[i], names[j] = names[j], names[i]
	})
	for i := range numTracks {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s %d", name, i/len(names)+1)
		}
		t := &Track{ID: fmt.Sprintf("track_%d", i), Name: name}
		if rng.Float64() < 0.2 {
			t.MuteGroups = []string{fmt.Sprintf("group_%d", rng.IntN(3))}
		}
		doc.Timeline.Tracks = append(doc.Timeline.Tracks, t)
	}

	randColor := func() string { return colorPool[rng.IntN(len(colorPool))] }

	nextStart := make([]float64, numTracks)
	for i := range numCues {
		if numTracks == 0 {
			break
		}
		trackIdx := rng.IntN(numTracks)
		cue := &Cue{
			ID:       fmt.Sprintf("q%d", i),
			Track:    doc.Timeline.Tracks[trackIdx].ID,
			Name:     lookNamePool[rng.IntN(len(lookNamePool))],
			Start:    nextStart[trackIdx] + float64(rng.IntN(3)),
			Duration: float64(2 + rng.IntN(10)),
			Curve:    curve.Flat(),
		}
		if rng.Float64() < 0.3 {
			cue.Curve = curve.Curve{Points: []curve.Point{{X: 0, Y: 0}, {X: 0.2, Y: 1}, {X: 0.8, Y: 1}, {X: 1, Y: 0}}}
		}
		nextStart[trackIdx] = cue.End()

		id := fmt.Sprintf("look_%d", i)
		r := rng.Float64()
		switch {
		case r < 0.5:
			s := &Scene{ID: id, Name: cue.Name}
			for _, f := range fixtureIDs {
				if rng.Float64() < 0.5 {
					continue
				}
				s.Fixtures = append(s.Fixtures, FixtureSetting{ID: f, Channels: map[string]int{
					"dimmer": rng.IntN(256),
					"red":    rng.IntN(256),
					"green":  rng.IntN(256),
					"blue":   rng.IntN(256),
				}})
			}
			doc.Catalog.Scenes = append(doc.Catalog.Scenes, s)
			cue.Source = Source{Kind: SourceScene, ID: id}
		case r < 0.75:
			doc.Catalog.Chasers = append(doc.Catalog.Chasers, &Chaser{
				ID:         id,
				Name:       cue.Name,
				StartColor: randColor(),
				EndColor:   randColor(),
				FadeTime:   float64(250 * (1 + rng.IntN(8))),
				Mode:       ModePingPong,
				Fixtures:   fixtureIDs,
			})
			cue.Source = Source{Kind: SourceChaser, ID: id}
		default:
			doc.Catalog.Effects = append(doc.Catalog.Effects, &Effect{
				ID:        id,
				Name:      cue.Name,
				Waveform:  waveformPool[rng.IntN(len(waveformPool))],
				Speed:     0.25 + rng.Float64()*2,
				Amplitude: 255,
				Spread:    float64(rng.IntN(360)),
				Wings:     1 + rng.IntN(2),
				Attribute: patch.AttrDimmer,
				Fixtures:  fixtureIDs,
			})
			cue.Source = Source{Kind: SourceEffect, ID: id}
		}
		doc.Timeline.Cues = append(doc.Timeline.Cues, cue)
	}

	return doc
}
