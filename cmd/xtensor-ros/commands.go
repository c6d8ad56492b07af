package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RoboStack/xtensor-ros/application"
	"github.com/RoboStack/xtensor-ros/internal/json"
	"github.com/RoboStack/xtensor-ros/internal/network/session"
	"github.com/RoboStack/xtensor-ros/internal/registry"
	"github.com/RoboStack/xtensor-ros/internal/topic"
	"github.com/RoboStack/xtensor-ros/pkg/log"
	"github.com/RoboStack/xtensor-ros/pkg/msgs"
	"github.com/RoboStack/xtensor-ros/pkg/util/etcd"
	"github.com/RoboStack/xtensor-ros/pkg/util/merr"
)

var errUsage = errors.New("usage")

type env struct {
	app    *application.Application
	cfg    *application.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"types", "list message types as JSON", runTypes},
	{"encode", "encode an array to wire bytes", runEncode},
	{"decode", "decode wire bytes and print the array as JSON", runDecode},
	{"pub", "publish an array on a topic", runPub},
	{"sub", "print arrays received on a topic", runSub},
	{"etcd", "run an embedded single-node etcd", runEtcd},
}

func dispatch(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		usage(e.stderr)
		return errUsage
	}
	cmd, ok := lo.Find(commands, func(c command) bool { return c.name == args[0] })
	if !ok {
		fmt.Fprintf(e.stderr, "unknown command %q\n", args[0])
		usage(e.stderr)
		return errUsage
	}
	err := cmd.run(ctx, e, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: xtensor-ros [--config file] <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// typeView 是 types 子命令的输出格式。
type typeView struct {
	Name       string `json:"name"`
	DataType   string `json:"type"`
	Element    string `json:"element"`
	ElemSize   int    `json:"elem_size"`
	MD5Sum     string `json:"md5sum"`
	Definition string `json:"definition"`
}

func runTypes(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "types")
	if err := fs.Parse(args); err != nil {
		return err
	}
	views := lo.Map(msgs.Descriptors(), func(d msgs.Descriptor, _ int) typeView {
		return typeView{
			Name:       d.Name,
			DataType:   d.DataType,
			Element:    d.Kind.String(),
			ElemSize:   d.ElemSize,
			MD5Sum:     d.MD5Sum,
			Definition: d.Definition,
		}
	})
	return writeJSON(e.stdout, views)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func runEncode(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "encode")
	typeName := fs.StringP("type", "t", "", "message type, e.g. f64 or xtensor_ros/f64")
	shape := fs.UintSlice("shape", nil, "comma separated shape")
	values := fs.StringSlice("values", nil, "comma separated values in row-major order, zeros when empty")
	output := fs.StringP("output", "o", "", "output file, stdout when empty")
	framed := fs.Bool("framed", false, "prefix the message with its uint32 length")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ops, err := opsFor(*typeName)
	if err != nil {
		return err
	}

	b, err := ops.encode(toShape(*shape), *values, *framed)
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = e.stdout.Write(b)
		return err
	}
	return os.WriteFile(*output, b, 0o644)
}

func runDecode(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "decode")
	typeName := fs.StringP("type", "t", "", "message type, e.g. f64 or xtensor_ros/f64")
	input := fs.StringP("input", "i", "", "input file, stdin when empty")
	framed := fs.Bool("framed", false, "the message is prefixed with its uint32 length")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ops, err := opsFor(*typeName)
	if err != nil {
		return err
	}

	var b []byte
	if *input == "" {
		b, err = io.ReadAll(e.stdin)
	} else {
		b, err = os.ReadFile(*input)
	}
	if err != nil {
		return err
	}
	view, err := ops.decode(b, *framed)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, view)
}

// topicFlags 是 pub 与 sub 共用的参数。
type topicFlags struct {
	typeName string
	topic    string
	callerID string
	addr     string
}

func (f *topicFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.typeName, "type", "t", "", "message type, e.g. f64 or xtensor_ros/f64")
	fs.StringVar(&f.topic, "topic", "", "topic name")
	fs.StringVar(&f.callerID, "callerid", "", "caller id sent in the connection header")
}

// topicOptions 把配置文件中的 transport 与 codec 段转换为 topic 选项。
func topicOptions(cfg *application.Config, f *topicFlags, reg registry.Registry) []topic.Option {
	opts := []topic.Option{
		topic.WithCodec(cfg.Codec),
		topic.WithSession(session.Options{SendQueueSize: cfg.Transport.SendQueue}),
		topic.WithDialTimeout(cfg.Transport.DialTimeout),
		topic.WithWorkers(cfg.Transport.Workers),
		topic.WithCallerID(f.callerID),
	}
	if reg != nil {
		opts = append(opts, topic.WithRegistry(reg))
	}
	return opts
}

// openRegistry 在配置了 registry.endpoints 时连接 etcd，否则返回 nil。
func openRegistry(cfg *application.Config) (registry.Registry, func(), error) {
	if len(cfg.Registry.Endpoints) == 0 {
		return nil, func() {}, nil
	}
	cli, err := etcd.GetRemoteEtcdClient(cfg.Registry.Endpoints, cfg.Transport.DialTimeout)
	if err != nil {
		return nil, nil, err
	}
	return registry.NewEtcd(cli, cfg.Registry.Prefix, cfg.Registry.TTL), func() { _ = cli.Close() }, nil
}

func runPub(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "pub")
	var tf topicFlags
	tf.register(fs)
	listen := fs.String("listen", e.cfg.Transport.Listen, "listen address")
	shape := fs.UintSlice("shape", nil, "comma separated shape")
	values := fs.StringSlice("values", nil, "comma separated values in row-major order")
	rate := fs.Duration("rate", time.Second, "publish interval")
	count := fs.Int("count", 0, "number of messages, 0 publishes until interrupted")
	latch := fs.Bool("latch", false, "resend the last message to new subscribers")
	wsPath := fs.String("ws-path", e.cfg.Transport.WebSocketPath, "serve subscribers over WebSocket on this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if tf.topic == "" {
		return merr.WrapErrParameterMissing("--topic")
	}
	ops, err := opsFor(tf.typeName)
	if err != nil {
		return err
	}

	reg, closeReg, err := openRegistry(e.cfg)
	if err != nil {
		return err
	}
	defer closeReg()

	opts := append(topicOptions(e.cfg, &tf, reg), topic.WithListen(*listen), topic.WithLatch(*latch))
	if *wsPath != "" {
		opts = append(opts, topic.WithWebSocket(*wsPath))
	}
	return ops.publish(ctx, e, tf.topic, opts, toShape(*shape), *values, *rate, *count)
}

func runSub(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "sub")
	var tf topicFlags
	tf.register(fs)
	fs.StringVar(&tf.addr, "addr", "", "publisher address, looked up in the registry when empty")
	count := fs.Int("count", 0, "exit after this many messages, 0 runs until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if tf.topic == "" {
		return merr.WrapErrParameterMissing("--topic")
	}
	ops, err := opsFor(tf.typeName)
	if err != nil {
		return err
	}

	reg, closeReg, err := openRegistry(e.cfg)
	if err != nil {
		return err
	}
	defer closeReg()
	if reg == nil && tf.addr == "" {
		return merr.WrapErrParameterMissing("--addr or registry.endpoints")
	}

	opts := topicOptions(e.cfg, &tf, reg)
	if tf.addr != "" {
		opts = append(opts, topic.WithAddress(tf.addr))
	}
	return ops.subscribe(ctx, e, tf.topic, opts, *count)
}

func runEtcd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "etcd")
	cfg := etcd.EmbedConfig{}
	fs.StringVar(&cfg.DataDir, "data-dir", "default.etcd", "data directory")
	fs.StringVar(&cfg.ClientURL, "client-url", "http://127.0.0.1:2379", "client listen url")
	fs.StringVar(&cfg.PeerURL, "peer-url", "", "peer listen url, a free local port when empty")
	fs.StringVar(&cfg.ConfigPath, "etcd-config", "", "etcd config file")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", 30*time.Second, "wait for the server to become ready")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := etcd.InitEtcdServer(cfg); err != nil {
		return err
	}
	defer etcd.StopEtcdServer()

	logger := e.app.Logger("etcd")
	logger.Info("embedded etcd ready", zap.Strings("client_urls", etcd.ClientURLs()))
	fmt.Fprintln(e.stdout, strings.Join(etcd.ClientURLs(), ","))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cli, err := etcd.GetEmbedEtcdClient()
		if err != nil {
			return err
		}
		defer cli.Close()
		return watchTopics(gctx, cli, e.cfg.Registry.Prefix, logger)
	})
	return g.Wait()
}

// watchTopics 记录 registry 前缀下端点的增删，直到 ctx 结束。
func watchTopics(ctx context.Context, cli *clientv3.Client, prefix string, logger *log.MLogger) error {
	if prefix == "" {
		prefix = registry.DefaultPrefix
	}
	for resp := range cli.Watch(ctx, prefix, clientv3.WithPrefix()) {
		if err := resp.Err(); err != nil {
			return err
		}
		for _, ev := range resp.Events {
			logger.Info("registry changed",
				zap.String("event", ev.Type.String()),
				zap.ByteString("key", ev.Kv.Key))
		}
	}
	return nil
}

func toShape(dims []uint) []uint64 {
	return lo.Map(dims, func(d uint, _ int) uint64 { return uint64(d) })
}
