package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/npsboy/vathapi/internal/audio"
	"github.com/npsboy/vathapi/internal/config"
	"github.com/npsboy/vathapi/internal/playback"
	"github.com/npsboy/vathapi/internal/render"
	"github.com/npsboy/vathapi/internal/session"
	"github.com/npsboy/vathapi/internal/stream"
	"github.com/npsboy/vathapi/internal/swara"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("manodharma starting up...")

	// Drone lead-in, derived once and reused while its inputs are unchanged
	clips := render.DirLoader{Dir: cfg.SwaraDir, Ext: cfg.SwaraExt}
	drone := render.NewBlender(render.DroneConfig{
		Source:    cfg.DroneSource,
		Output:    cfg.DroneOutput,
		Blend:     clips.Path(cfg.DroneBlend),
		Threshold: cfg.DroneThreshold,
		Lead:      cfg.DroneLead,
		Tail:      cfg.DroneTail,
		Fade:      cfg.Crossfade,
	})
	derived, err := drone.Ensure(cfg.DroneCrop)
	if err != nil {
		log.Fatalf("Drone lead-in: %v", err)
	}
	if derived {
		log.Printf("Drone lead-in derived: %s (%v)", drone.Path(), cfg.DroneCrop)
	} else {
		log.Printf("Drone lead-in reused: %s", drone.Path())
	}

	droneName := strings.TrimSuffix(filepath.Base(cfg.DroneOutput), filepath.Ext(cfg.DroneOutput))
	loader := render.Overlay{Base: clips, Paths: map[string]string{droneName: cfg.DroneOutput}}
	renderer := render.NewRenderer(loader, cfg.ToneDuration, droneName)
	asm := render.NewAssembler(renderer, cfg.Crossfade,
		render.Vibrato{Freq: cfg.VibratoFreq, Depth: cfg.VibratoDepth}, droneName)

	gen := swara.NewGenerator(swara.Alphabet, swara.NewRules(swara.InvalidPairs),
		swara.Anchor, cfg.MaxRetries, nil)

	// Sinks: the stream queue first, then local playback which removes the file
	var sinks []session.Sink
	var pipeline *audio.Pipeline
	var broadcaster *stream.Broadcaster
	if cfg.Port > 0 {
		pipeline = audio.NewPipeline(cfg.StreamCrossfade)
		go pipeline.Run(ctx)
		broadcaster = stream.NewBroadcaster()
		go broadcaster.Run(ctx, pipeline.Frames())
		sinks = append(sinks, session.NewStreamSink(pipeline, cfg.BufferAhead))
	}
	if cfg.PlaybackLocal {
		player, err := playback.New()
		if err != nil {
			log.Fatalf("Sound device: %v", err)
		}
		sinks = append(sinks, player)
	} else {
		sinks = append(sinks, session.Cleanup)
	}

	sess := session.New(gen, asm, drone, session.Config{
		Length:        cfg.Length,
		Cycles:        cfg.Cycles,
		OutputPath:    cfg.OutputPath,
		DroneDuration: cfg.DroneCrop,
	}, sinks...)

	if cfg.Port > 0 {
		server := newServer(cfg, sess, pipeline, broadcaster)
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		go func() {
			log.Printf("manodharma live on %s", server.Addr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Session stopped: %v", err)
	}
	log.Println("Shutting down...")
}

func newServer(cfg config.Config, sess *session.Session, pipeline *audio.Pipeline, broadcaster *stream.Broadcaster) *http.Server {
	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.OpusBitrate, cfg.STUNServers...)

	mux := http.NewServeMux()
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate))
	mux.Handle("/offer", webrtcHandler)

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		st := sess.Status()
		phrase, pos, dur := pipeline.Status()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"session":          st,
			"phrase_id":        phrase.ID,
			"phrase_sequence":  phrase.Sequence,
			"position":         pos.Seconds(),
			"duration":         dur.Seconds(),
			"queue_size":       pipeline.QueueSize(),
			"http_listeners":   broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
			"config": map[string]any{
				"length":           cfg.Length,
				"tone_duration":    cfg.ToneDuration.Seconds(),
				"crossfade":        cfg.Crossfade.Seconds(),
				"vibrato_freq":     cfg.VibratoFreq,
				"vibrato_depth":    cfg.VibratoDepth,
				"drone_crop":       cfg.DroneCrop.Seconds(),
				"stream_crossfade": pipeline.CrossfadeDuration().Seconds(),
			},
		})
	})

	mux.HandleFunc("/api/skip", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		pipeline.Skip()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	return &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
}
