package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/internal/crypto/ed25519"
	"github.com/eigerco/cnr/internal/randommath"
	"github.com/eigerco/cnr/internal/store"
	"github.com/eigerco/cnr/pkg/conformance"
	"github.com/eigerco/cnr/pkg/conformance/native"
	"github.com/eigerco/cnr/pkg/db"
	"github.com/eigerco/cnr/pkg/db/pebble"
	"github.com/eigerco/cnr/pkg/log"
	"github.com/eigerco/cnr/pkg/network/cert"
	"github.com/eigerco/cnr/pkg/network/transport"
)

const usage = `usage: cnr <command> [flags]

commands:
  vectors <file> [generate]   check a vector file, or write one for its heights
  program -height N           print the program listing and fingerprint
  store -from N -to M         generate and persist programs into the store
  serve -listen addr          serve signed programs over QUIC
  fetch -addr addr -height N  fetch a program and verify it
  native -lib path -height N  compare with a native reference library
`

// main dispatches to a subcommand, defaults come from the environment and an
// optional .env file
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	if err := initLogger(os.Getenv("CNR_LOG_LEVEL")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	commands := map[string]func(args []string) error{
		"vectors": runVectors,
		"program": runProgram,
		"store":   runStore,
		"serve":   runServe,
		"fetch":   runFetch,
		"native":  runNative,
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[2:]); err != nil {
		log.Root.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func initLogger(level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := log.ParseLogLevel(level)
		if err != nil {
			return fmt.Errorf("invalid CNR_LOG_LEVEL %q: %w", level, err)
		}
		lvl = parsed
	}
	log.Init(log.Options{LogLevel: lvl, Type: log.ConsoleLogger, Output: os.Stderr})
	return nil
}

func runVectors(args []string) error {
	if len(args) < 1 || len(args) > 2 || (len(args) == 2 && args[1] != "generate") {
		return fmt.Errorf("usage: cnr vectors <file> [generate]")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		vectors, err := conformance.ParseVectors(bytes.NewReader(data))
		if err != nil {
			return err
		}
		heights := make([]uint64, len(vectors))
		for i, v := range vectors {
			heights[i] = v.Height
		}
		return conformance.Generate(heights, os.Stdout)
	}

	report, err := conformance.Check(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for _, m := range report.Mismatches {
		fmt.Println(m)
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d hashes differ", len(report.Mismatches), report.Checked)
	}
	fmt.Printf("%d hashes OK\n", report.Checked)
	return nil
}

func runProgram(args []string) error {
	fl := flag.NewFlagSet("program", flag.ContinueOnError)
	height := fl.Uint64("height", 0, "block height")
	width := fl.Int("width", constants.RegisterBits, "register width used by -trace, 32 or 64")
	trace := fl.Bool("trace", false, "execute once from the conformance seed and log every step")
	if err := fl.Parse(args); err != nil {
		return err
	}

	p := randommath.Generate(*height)
	fmt.Print(p)
	fmt.Printf("size: %d\nfingerprint: %s\n", p.Len(), p.Fingerprint())
	if !*trace {
		return nil
	}

	tracer := randommath.NewTracer(&log.VM)
	switch *width {
	case 32:
		r := conformance.SeedRegisters[uint32](*height)
		randommath.Trace(tracer, p, &r)
		fmt.Printf("registers: %x\n", r)
	case 64:
		r := conformance.SeedRegisters[uint64](*height)
		randommath.Trace(tracer, p, &r)
		fmt.Printf("registers: %x\n", r)
	default:
		return fmt.Errorf("unsupported width %d", *width)
	}
	return nil
}

// openPrograms opens the program store at path, or an in-memory one when
// path is empty
func openPrograms(path string) (*store.Programs, error) {
	var (
		kv  db.KVStore
		err error
	)
	if path == "" {
		kv, err = pebble.NewKVStore()
	} else {
		kv, err = pebble.NewKVStoreAt(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create kv store: %w", err)
	}
	programs, err := store.NewPrograms(kv, 0)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return programs, nil
}

func runStore(args []string) error {
	fl := flag.NewFlagSet("store", flag.ContinueOnError)
	path := fl.String("db", os.Getenv("CNR_DB_PATH"), "pebble directory")
	from := fl.Uint64("from", 0, "first height")
	to := fl.Uint64("to", 0, "height after the last one")
	if err := fl.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-db or CNR_DB_PATH is required")
	}

	programs, err := openPrograms(*path)
	if err != nil {
		return err
	}
	defer programs.Close()

	if err := programs.Prefetch(*from, *to); err != nil {
		return err
	}
	heights, err := programs.Heights()
	if err != nil {
		return err
	}
	fmt.Printf("%d programs stored\n", len(heights))
	return nil
}

// loadKey reads a hex Ed25519 seed, or creates a random key when s is empty
func loadKey(s string) (ed25519.PrivateKey, error) {
	if s == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		return priv, err
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key must be %d hex encoded bytes", ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func newTransport(key ed25519.PrivateKey, listen string, handler transport.StreamHandler) (*transport.Transport, error) {
	tlsCert, err := cert.NewGenerator(cert.Config{PrivateKey: key}).GenerateCertificate()
	if err != nil {
		return nil, err
	}
	return transport.NewTransport(transport.Config{
		TLSCert:       tlsCert,
		ListenAddr:    listen,
		CertValidator: cert.NewValidator(),
		Handler:       handler,
	})
}

func runServe(args []string) error {
	fl := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fl.String("listen", "127.0.0.1:9900", "UDP address to listen on")
	keyHex := fl.String("key", os.Getenv("CNR_KEY"), "hex Ed25519 seed, random when empty")
	path := fl.String("db", os.Getenv("CNR_DB_PATH"), "pebble directory, in-memory when empty")
	if err := fl.Parse(args); err != nil {
		return err
	}

	programs, err := openPrograms(*path)
	if err != nil {
		return err
	}
	defer programs.Close()

	key, err := loadKey(*keyHex)
	if err != nil {
		return err
	}
	tr, err := newTransport(key, *listen, transport.NewProgramServer(programs, key))
	if err != nil {
		return err
	}
	if err := tr.Start(); err != nil {
		return err
	}
	fmt.Printf("serving on %s, public key %x\n", tr.Addr(), key.Public())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return tr.Stop()
}

func runFetch(args []string) error {
	fl := flag.NewFlagSet("fetch", flag.ContinueOnError)
	addr := fl.String("addr", "127.0.0.1:9900", "server address")
	height := fl.Uint64("height", 0, "block height")
	serverKey := fl.String("server-key", "", "expected hex server public key")
	verify := fl.Bool("verify", true, "regenerate locally and compare")
	timeout := fl.Duration("timeout", 10*time.Second, "overall timeout")
	if err := fl.Parse(args); err != nil {
		return err
	}

	key, err := loadKey("")
	if err != nil {
		return err
	}
	tr, err := newTransport(key, "", nil)
	if err != nil {
		return err
	}
	defer tr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	conn, err := tr.Connect(ctx, *addr)
	if err != nil {
		return err
	}
	if *serverKey != "" && hex.EncodeToString(conn.PeerKey()) != strings.ToLower(*serverKey) {
		return fmt.Errorf("server key %x does not match %s", conn.PeerKey(), *serverKey)
	}

	client := transport.NewProgramClient(conn)
	client.VerifyLocally = *verify
	p, err := client.FetchProgram(ctx, *height)
	if err != nil {
		return err
	}
	fmt.Print(p)
	fmt.Printf("size: %d\nfingerprint: %s\n", p.Len(), p.Fingerprint())
	return nil
}

func runNative(args []string) error {
	fl := flag.NewFlagSet("native", flag.ContinueOnError)
	lib := fl.String("lib", os.Getenv(native.EnvLibraryPath), "reference shared library")
	heights := fl.String("height", "0", "comma separated heights")
	if err := fl.Parse(args); err != nil {
		return err
	}
	if *lib == "" {
		return fmt.Errorf("-lib or %s is required", native.EnvLibraryPath)
	}

	l, err := native.Open(*lib)
	if err != nil {
		return err
	}
	defer l.Close()

	for _, s := range strings.Split(*heights, ",") {
		h, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q: %w", s, err)
		}
		if err := native.Compare(l, h); err != nil {
			return err
		}
		fmt.Printf("height %d: OK\n", h)
	}
	return nil
}
