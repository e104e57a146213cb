package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/gwuhaolin/tsgen/configure"
	"github.com/gwuhaolin/tsgen/sink"
	"github.com/gwuhaolin/tsgen/source"
	"github.com/gwuhaolin/tsgen/stream"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var VERSION = "master"

// 진행 상황을 레지스트리에 남기는 간격(프레임)
const progressEvery = 30

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := path.Base(f.File)
			return fmt.Sprintf("%s()", f.Function), fmt.Sprintf(" %s:%d", filename, f.Line)
		},
	})
}

func openRegistry(cfg *configure.Settings) *configure.Registry {
	reg, err := configure.NewRegistry(cfg.RedisAddr, cfg.RedisPwd)
	if err == nil {
		return reg
	}
	log.Warning(err)
	log.Info("Using local run registry")
	reg, _ = configure.NewRegistry("", "")
	return reg
}

func run(cfg *configure.Settings) error {
	target, err := sink.ParseTarget(cfg.Target)
	if err != nil {
		return err
	}
	src, err := source.NewPatternSource(cfg.SourceConfig())
	if err != nil {
		return err
	}

	w, err := sink.Open(target, cfg.SinkOptions())
	if err != nil {
		return err
	}
	var out io.WriteCloser = w
	if cfg.QueueSize > 0 {
		out = sink.NewQueue(w, cfg.QueueSize)
	}

	reg := openRegistry(cfg)
	defer reg.Close()
	key, err := reg.Register(target.String())
	if err != nil {
		out.Close()
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := stream.Run(ctx, stream.Config{
		Info: av.Info{
			Key:    key,
			URL:    target.String(),
			MpegTS: cfg.MpegTS,
		},
		Streamer: cfg.StreamerConfig(),
		Progress: func(s stream.Status) {
			if err := reg.Update(key, s.Frames, s.Packets); err != nil {
				log.Warning("registry update: ", err)
			}
		},
		ProgressEvery: progressEvery,
	}, src, out)

	if cerr := out.Close(); err == nil && cerr != nil {
		err = av.NewError(av.ErrSink, st.Frames, "close", cerr)
	}
	if ferr := reg.Finish(key, err); ferr != nil {
		log.Warning("registry finish: ", ferr)
	}
	return err
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("tsgen panic: ", r)
			time.Sleep(1 * time.Second)
			os.Exit(2)
		}
	}()

	log.Infof(`
      _____ ____   ____ _____ _   _
     |_   _/ ___| / ___| ____| \ | |
       | | \___ \| |  _|  _| |  \| |
       | |  ___) | |_| | |___| |\  |
       |_| |____/ \____|_____|_| \_|
        version: %s
	`, VERSION)

	cfg, err := configure.Load(os.Args[1:])
	if err == pflag.ErrHelp {
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	if err := run(cfg); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
