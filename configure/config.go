package configure

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/gwuhaolin/tsgen/av"
	"github.com/gwuhaolin/tsgen/container/ts"
	"github.com/gwuhaolin/tsgen/sink"
	"github.com/gwuhaolin/tsgen/source"
	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

/*
설정은 아래 순서로 덮어쓴다.
	기본값(json) -> 설정 파일(config_file) -> 환경 변수(TSGEN_*) -> 명령행 플래그

	target: "udp://239.0.0.1:5000"
	mpegts: true
	num_frames: 300
*/
type Settings struct {
	Target          string  `json:"target" mapstructure:"target"`
	MpegTS          bool    `json:"mpegts" mapstructure:"mpegts"`
	NumFrames       uint64  `json:"num_frames" mapstructure:"num_frames"`
	XSize           int     `json:"xsize" mapstructure:"xsize"`
	YSize           int     `json:"ysize" mapstructure:"ysize"`
	PixFmt          string  `json:"pix_fmt" mapstructure:"pix_fmt"`
	FrameRate       float64 `json:"frame_rate" mapstructure:"frame_rate"`
	VideoPID        uint16  `json:"video_pid" mapstructure:"video_pid"`
	PMTPID          uint16  `json:"pmt_pid" mapstructure:"pmt_pid"`
	ProgramNumber   uint16  `json:"program_number" mapstructure:"program_number"`
	TableInterval   uint64  `json:"table_interval" mapstructure:"table_interval"`
	TableIntervalMS int     `json:"table_interval_ms" mapstructure:"table_interval_ms"`
	InitialPTS      uint64  `json:"initial_pts" mapstructure:"initial_pts"`
	PTSWrap         bool    `json:"pts_wrap" mapstructure:"pts_wrap"`
	PCREveryUnit    bool    `json:"pcr_every_unit" mapstructure:"pcr_every_unit"`
	PCRDelayMS      int     `json:"pcr_delay_ms" mapstructure:"pcr_delay_ms"`
	UDPBatch        int     `json:"udp_batch" mapstructure:"udp_batch"`
	UDPTTL          int     `json:"udp_ttl" mapstructure:"udp_ttl"`
	QueueSize       int     `json:"queue_size" mapstructure:"queue_size"`
	RedisAddr       string  `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPwd        string  `json:"redis_pwd" mapstructure:"redis_pwd"`
	Level           string  `json:"level" mapstructure:"level"`
	ConfigFile      string  `json:"config_file" mapstructure:"config_file"`
}

// default config
var defaultConf = Settings{
	NumFrames:     30,
	XSize:         320,
	YSize:         240,
	PixFmt:        string(source.PixFmtRGB8),
	FrameRate:     30,
	VideoPID:      0x100,
	PMTPID:        0x1000,
	ProgramNumber: 1,
	TableInterval: 40,
	PCREveryUnit:  true,
	UDPBatch:      sink.DefaultUDPBatch,
	UDPTTL:        sink.DefaultUDPTTL,
	Level:         "info",
	ConfigFile:    "tsgen.yaml",
}

// 마지막으로 Load 된 설정
var Config = viper.New()

func initLog(v *viper.Viper) {
	if l, err := log.ParseLevel(v.GetString("level")); err == nil {
		log.SetLevel(l)
		log.SetReportCaller(l == log.DebugLevel)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tsgen", pflag.ContinueOnError)
	fs.StringP("target", "t", "", "where to send: file:///path, udp://ip:port, - for stdout, or a file path")
	fs.Bool("mpegts", false, "send a mpeg-ts stream instead of a raw h264 stream")
	fs.Uint64P("num_frames", "n", defaultConf.NumFrames, "number of frames to produce")
	fs.IntP("xsize", "x", defaultConf.XSize, "image width")
	fs.IntP("ysize", "y", defaultConf.YSize, "image height")
	fs.String("pix_fmt", defaultConf.PixFmt, "test pattern pixel format: rgb8 or mono8")
	fs.Float64("frame_rate", defaultConf.FrameRate, "frames per second")
	fs.Uint16("video_pid", defaultConf.VideoPID, "video elementary stream PID")
	fs.Uint16("pmt_pid", defaultConf.PMTPID, "PMT PID")
	fs.Uint16("program_number", defaultConf.ProgramNumber, "program number")
	fs.Uint64("table_interval", defaultConf.TableInterval, "re-send PAT/PMT every N video packets (0 = off)")
	fs.Int("table_interval_ms", 0, "re-send PAT/PMT every M ms of stream time (0 = off)")
	fs.Uint64("initial_pts", 0, "PTS of the first frame (90kHz)")
	fs.Bool("pts_wrap", false, "wrap PTS at 2^33 instead of failing")
	fs.Bool("pcr_every_unit", defaultConf.PCREveryUnit, "carry a PCR on the first packet of every PES")
	fs.Int("pcr_delay_ms", 0, "send the PCR this many ms ahead of the PTS")
	fs.Int("udp_batch", defaultConf.UDPBatch, "TS packets per UDP datagram")
	fs.Int("udp_ttl", defaultConf.UDPTTL, "multicast TTL")
	fs.Int("queue_size", 0, "write through a bounded queue of this size (0 = direct)")
	fs.String("redis_addr", "", "redis address for the run registry")
	fs.String("redis_pwd", "", "redis password")
	fs.String("config_file", defaultConf.ConfigFile, "configure filename")
	fs.String("level", defaultConf.Level, "Log level")
	return fs
}

// Load 는 args(프로그램 이름 제외)를 읽어 최종 설정을 만든다.
func Load(args []string) (*Settings, error) {
	v := viper.New()

	// Default config
	// 기본값은 별도 인스턴스에서 json 으로 읽어 합친다. 설정 파일 타입은 확장자로 정해진다.
	b, _ := json.Marshal(defaultConf)
	d := viper.New()
	d.SetConfigType("json")
	if err := d.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, av.ConfigError("default config: %v", err)
	}
	if err := v.MergeConfigMap(d.AllSettings()); err != nil {
		return nil, av.ConfigError("default config: %v", err)
	}

	// Flags
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		return nil, av.ConfigError("%v", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, av.ConfigError("%v", err)
	}

	// File
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			if fs.Changed("config_file") {
				return nil, av.ConfigError("config file %s: %v", file, err)
			}
			log.Debug(err)
			log.Debug("Using default config")
		}
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvPrefix("tsgen")
	v.SetEnvKeyReplacer(replacer)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// Log
	initLog(v)

	c := &Settings{}
	if err := v.Unmarshal(c); err != nil {
		return nil, av.ConfigError("%v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	Config = v

	// Print final config
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(*c))
	return c, nil
}

// Validate 는 패킷을 만들기 전에 잘못된 값을 걸러낸다.
func (c *Settings) Validate() error {
	if _, err := sink.ParseTarget(c.Target); err != nil {
		return err
	}
	if _, err := source.ParsePixFmt(c.PixFmt); err != nil {
		return err
	}
	if c.XSize <= 0 || c.YSize <= 0 || c.XSize%2 != 0 || c.YSize%2 != 0 {
		return av.ConfigError("image size %dx%d must be positive and even", c.XSize, c.YSize)
	}
	if c.FrameRate <= 0 || math.IsNaN(c.FrameRate) || math.IsInf(c.FrameRate, 0) {
		return av.ConfigError("invalid frame rate %v", c.FrameRate)
	}
	if c.InitialPTS > av.MaxClock {
		return av.ConfigError("initial pts %d exceeds 33 bits", c.InitialPTS)
	}
	if c.TableIntervalMS < 0 {
		return av.ConfigError("negative table interval %dms", c.TableIntervalMS)
	}
	if c.PCRDelayMS < 0 || uint64(c.PCRDelayMS) > av.MaxClock/(av.ClockHZ/1000) {
		return av.ConfigError("invalid pcr delay %dms", c.PCRDelayMS)
	}
	if c.UDPBatch <= 0 {
		return av.ConfigError("udp batch %d must be positive", c.UDPBatch)
	}
	if c.UDPTTL < 0 || c.UDPTTL > 255 {
		return av.ConfigError("invalid udp ttl %d", c.UDPTTL)
	}
	if c.QueueSize < 0 {
		return av.ConfigError("negative queue size %d", c.QueueSize)
	}
	// PID 와 program number 는 TableEmitter 가 검사한다.
	if _, err := ts.NewTableEmitter(c.tableConfig()); err != nil {
		return err
	}
	return nil
}

func (c *Settings) tableConfig() ts.TableConfig {
	return ts.TableConfig{
		TransportStreamID: 1,
		ProgramNumber:     c.ProgramNumber,
		PMTPID:            c.PMTPID,
		VideoPID:          c.VideoPID,
		StreamType:        av.StreamTypeH264,
		IntervalPackets:   c.TableInterval,
		Interval:          time.Duration(c.TableIntervalMS) * time.Millisecond,
	}
}

func (c *Settings) StreamerConfig() ts.StreamerConfig {
	tc := c.tableConfig()
	return ts.StreamerConfig{
		VideoPID:          tc.VideoPID,
		PMTPID:            tc.PMTPID,
		ProgramNumber:     tc.ProgramNumber,
		TransportStreamID: tc.TransportStreamID,
		FrameRate:         c.FrameRate,
		InitialPTS:        c.InitialPTS,
		WrapPTS:           c.PTSWrap,
		PCREveryUnit:      c.PCREveryUnit,
		PCRDelay:          time.Duration(c.PCRDelayMS) * time.Millisecond,
		TableInterval:     tc.IntervalPackets,
		TableIntervalTime: tc.Interval,
	}
}

func (c *Settings) SourceConfig() source.Config {
	return source.Config{
		Width:     c.XSize,
		Height:    c.YSize,
		PixFmt:    source.PixFmt(strings.ToLower(c.PixFmt)),
		NumFrames: c.NumFrames,
	}
}

func (c *Settings) SinkOptions() sink.Options {
	return sink.Options{
		UDPBatch: c.UDPBatch,
		UDPTTL:   c.UDPTTL,
	}
}
