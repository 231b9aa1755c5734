// cmd/agent is a local microphone/speaker demo client: it captures and
// plays back audio via malgo and relays opus frames to/from a running
// cmd/server over the websocket transport, framing mic input the same
// 20 ms/320-sample way the VAD Gate expects on the server side.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using process environment")
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "ws://localhost:8080/ws"
	}
	deviceID := os.Getenv("DEVICE_ID")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	header := map[string][]string{}
	if deviceID != "" {
		header["X-Device-Id"] = []string{deviceID}
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		log.Fatalf("bad server url: %v", err)
	}
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		log.Fatalf("dial server: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	fmt.Println("Connected to", serverURL)
	fmt.Println("Press Ctrl+C to exit")

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	enc, err := audio.NewEncoder()
	if err != nil {
		log.Fatal(err)
	}
	dec, err := audio.NewDecoder(audio.OutFrameSamples)
	if err != nil {
		log.Fatal(err)
	}

	var playbackMu sync.Mutex
	var playbackPCM []byte

	var micMu sync.Mutex
	var micPCM []int16

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			micMu.Lock()
			for i := 0; i+1 < len(pInput); i += 2 {
				micPCM = append(micPCM, int16(pInput[i])|int16(pInput[i+1])<<8)
			}
			for len(micPCM) >= audio.InFrameSamples {
				frame := micPCM[:audio.InFrameSamples]
				micPCM = micPCM[audio.InFrameSamples:]
				packet, err := enc.EncodeFrameN(frame, audio.InFrameSamples)
				if err == nil {
					_ = conn.Write(ctx, websocket.MessageBinary, packet)
				}
			}
			micMu.Unlock()
		}
		if pOutput != nil {
			playbackMu.Lock()
			n := copy(pOutput, playbackPCM)
			playbackPCM = playbackPCM[n:]
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
			playbackMu.Unlock()
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = audio.SampleRateHz

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	go func() {
		for {
			kind, data, err := conn.Read(ctx)
			if err != nil {
				log.Println("server connection closed:", err)
				cancel()
				return
			}
			switch kind {
			case websocket.MessageBinary:
				pcm, err := dec.Decode(data)
				if err != nil {
					continue
				}
				playbackMu.Lock()
				playbackPCM = append(playbackPCM, pcm...)
				playbackMu.Unlock()
			case websocket.MessageText:
				fmt.Println(string(data))
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	fmt.Println("\nShutting down...")
}
