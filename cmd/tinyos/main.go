package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/tinyos/fs"
	"github.com/evanphx/tinyos/fs/host"
	"github.com/evanphx/tinyos/fs/random"
	"github.com/evanphx/tinyos/fs/tarfs"
	"github.com/evanphx/tinyos/kernel"
	clog "github.com/evanphx/tinyos/log"
	"github.com/evanphx/tinyos/memory"
	"github.com/evanphx/tinyos/programs"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

var (
	fRoot     = pflag.StringP("root", "r", ".", "directory the file device opens paths under")
	fConfig   = pflag.StringP("config", "c", "", "JSON file of machine settings")
	fQuantum  = pflag.Duration("quantum", 0, "override the scheduling quantum")
	fSwapFile = pflag.String("swap-file", "", "swap to this host file instead of memory")
	fSeed     = pflag.Int64("seed", 0, "seed scheduling and eviction choices (0 uses the clock)")
	fProgram  = pflag.StringP("program", "p", "pingpong", "program set started by init")
	fDump     = pflag.Bool("dump", false, "dump the machine state on exit and on SIGUSR1")
	fLogLevel = pflag.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fTar      = pflag.String("tar", "", "tar archive served read-only under the tar device")
	fList     = pflag.Bool("list", false, "list the available programs and exit")
)

func main() {
	cpuprofile := os.Getenv("CPUPROFILE")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		fmt.Printf("pprof: profiling started\n")
	}

	pflag.Parse()

	if *fList {
		fmt.Println(strings.Join(programs.Names(), "\n"))
		return
	}

	if *fLogLevel != "" {
		clog.SetLevel(*fLogLevel)
	}

	err := run()

	if cpuprofile != "" {
		pprof.StopCPUProfile()
		fmt.Printf("pprof: profiling finished\n")
	}

	if err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := kernel.DefaultConfig()

	if *fConfig != "" {
		var err error

		cfg, err = kernel.LoadConfig(*fConfig)
		if err != nil {
			return err
		}
	}

	if *fQuantum > 0 {
		cfg.QuantumMillis = int(*fQuantum / time.Millisecond)
	}

	children, ok := programs.Lookup(*fProgram)
	if !ok {
		return errors.Errorf("unknown program %q, have: %s", *fProgram, strings.Join(programs.Names(), ", "))
	}

	vfs := fs.NewVFS(cfg.VFSSlots, clog.Named("vfs"))
	vfs.Register("random", func() fs.Device { return random.NewDevice() })
	vfs.Register("file", func() fs.Device { return host.NewFileDevice(*fRoot) })

	if *fTar != "" {
		archive, err := tarfs.Load(*fTar)
		if err != nil {
			return err
		}

		vfs.Register("tar", func() fs.Device { return archive })
	}

	opts := []kernel.Option{kernel.WithVFS(vfs)}

	if *fSeed != 0 {
		opts = append(opts, kernel.WithRand(rand.New(rand.NewSource(*fSeed))))
	}

	if *fSwapFile != "" {
		swap, err := memory.NewFileSwap(*fSwapFile)
		if err != nil {
			return err
		}

		defer swap.Close()

		opts = append(opts, kernel.WithSwap(swap))
	}

	k, err := kernel.NewKernel(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	if *fDump {
		go dumpOnSignal(ctx, k)
	}

	if _, err := k.Spawn(ctx, "init", kernel.Realtime, programs.Init(children)); err != nil {
		return err
	}

	err = k.Run(ctx)

	if *fDump {
		dump(ctx, k)
	}

	if err == context.Canceled {
		return nil
	}

	return err
}

func dump(ctx context.Context, k *kernel.Kernel) {
	snap, err := k.Snapshot(ctx)
	if err != nil {
		clog.L.Error("snapshot failed", "error", err)
		return
	}

	spew.Fdump(os.Stderr, snap)
}

func dumpOnSignal(ctx context.Context, k *kernel.Kernel) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, unix.SIGUSR1)
	defer signal.Stop(c)

	for {
		select {
		case <-c:
			dump(ctx, k)
		case <-ctx.Done():
			return
		}
	}
}
