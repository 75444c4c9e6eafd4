package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kingpinzs/digital-archaeology-sub011/bridge"
	"github.com/kingpinzs/digital-archaeology-sub011/message"
)

func main() {
	var compile string
	var output string
	var save bool
	var debug bool
	var speed int
	var timeout time.Duration
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&output, "o", "-", "Binary output file (with -s)")
	flag.BoolVar(&save, "s", false, "Assemble only, do not execute")
	flag.BoolVar(&debug, "d", false, "Interactive monitor")
	flag.IntVar(&speed, "speed", 0, "Instructions per tick (0 = maximum)")
	flag.DurationVar(&timeout, "t", 10*time.Second, "Run time limit")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}
	if len(compile) == 0 && !debug {
		log.Fatalf("%v: no program given (-c file.asm)", os.Args[0])
	}

	ctx := context.Background()

	as := bridge.NewAssembler()
	if err := as.Start(ctx); err != nil {
		log.Fatalf("assembler: %v", err)
	}
	defer as.Terminate()

	var binary []uint8
	if len(compile) != 0 {
		source, err := os.ReadFile(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		binary, err = as.Compile(ctx, string(source))
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if verbose {
			log.Printf("%v: %d nibbles generated", compile, len(binary))
		}
	}

	if save {
		if err := writeBinary(output, binary); err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		return
	}

	cp := bridge.NewCPU()
	if err := cp.Start(ctx); err != nil {
		log.Fatalf("cpu: %v", err)
	}
	defer cp.Terminate()

	if len(binary) != 0 {
		if _, err := cp.LoadProgram(ctx, binary, 0); err != nil {
			log.Fatalf("load: %v", err)
		}
	}

	if debug {
		m := newMonitor(cp, as, timeout)
		m.verbose = verbose
		if err := m.repl(ctx); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(ctx, cp, speed, timeout); err != nil {
		log.Fatal(err)
	}
}

// run executes the loaded program to completion and dumps the final
// machine state, bounded by the time limit so a looping program cannot
// wedge the tool.
func run(ctx context.Context, cp *bridge.CPU, speed int, timeout time.Duration) (err error) {
	stopped := make(chan message.Event, 1)
	cancel := cp.Subscribe(func(ev message.Event) {
		switch ev.(type) {
		case message.Halted, message.Fault:
			select {
			case stopped <- ev:
			default:
			}
		}
	})
	defer cancel()

	if err = cp.Run(speed); err != nil {
		return
	}

	select {
	case ev := <-stopped:
		if fault, ok := ev.(message.Fault); ok {
			d := bridge.Diagnose(fault)
			fmt.Printf("Fault: %v\n", d)
			err = d
		}
	case <-time.After(timeout):
		if _, err = cp.Stop(ctx); err != nil {
			return
		}
		err = fmt.Errorf("run: no halt within %v", timeout)
	}

	snap, serr := cp.State(ctx)
	if serr != nil {
		return serr
	}

	dumpState(os.Stdout, snap)
	return
}

// writeBinary saves the nibble image, or hex-dumps it to stdout for "-".
func writeBinary(output string, binary []uint8) (err error) {
	if output == "-" {
		dumpMemory(os.Stdout, binary, 0, len(binary)-1)
		return
	}

	return os.WriteFile(output, binary, 0o644)
}
