// Command vos-sim runs a master and a slave against each other over an
// in-memory loopback link, driven by the cooperative scheduler, as a
// runnable demonstration of the four subsystems wired together: a
// registered memdev-backed register store, a Modbus slave serving it, a
// Modbus master polling it on a timer, and the scheduler ticking both.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	vos "github.com/embeddedvos/vos"
	"github.com/embeddedvos/vos/internal/logging"
	"github.com/embeddedvos/vos/mberr"
	"github.com/embeddedvos/vos/memdev"
	"github.com/embeddedvos/vos/modbus"
	"github.com/embeddedvos/vos/modbustest"
)

func main() {
	var (
		sizeStr  = flag.String("size", "1K", "size of the simulated register store (e.g. 1K, 4K)")
		addr     = flag.Uint("addr", 0x11, "slave RTU address")
		verbose  = flag.Bool("v", false, "verbose logging")
		periodMS = flag.Uint("period-ms", 10, "master poll period in milliseconds")
	)
	flag.Parse()

	size, err := parseSize(*sizeStr)
	if err != nil {
		log.Fatalf("invalid size %q: %v", *sizeStr, err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	machine := vos.New(vos.Config{Logger: logger})

	numRegs := size / 2
	mem := memdev.New(size)
	work := modbus.SlaveWork{
		Start: 0,
		End:   uint16(numRegs),
		Handler: func(f byte, reg, regNum uint16, data []uint16) mberr.Code {
			for i := range data {
				var b [2]byte
				off := (int64(reg) + int64(i)) * 2
				switch f {
				case modbus.FuncReadHoldingRegisters:
					mem.ReadAt(b[:], off)
					data[i] = uint16(b[0])<<8 | uint16(b[1])
				case modbus.FuncWriteMultipleRegisters:
					b[0], b[1] = byte(data[i]>>8), byte(data[i])
					mem.WriteAt(b[:], off)
				}
			}
			return mberr.None
		},
	}

	if _, err := machine.Devices.Register("regstore", memdev.FileOps(), size, memdev.Init(mem)); err != nil {
		logger.Error("failed to register register store", "error", err)
		os.Exit(1)
	}

	slave := modbus.NewSlave(modbus.SlaveConfig{Address: byte(*addr), WorkTable: []modbus.SlaveWork{work}, Logger: logger})
	master := modbus.NewMaster(modbus.MasterConfig{PeriodMS: uint32(*periodMS), Logger: logger})
	masterEnd, slaveEnd := modbustest.NewPair()

	obs := machine.Observer()
	var round uint16
	issueNext := func() {
		reg := round % uint16(numRegs)
		round++
		_ = master.Submit(&modbus.Request{
			SlaveAddr: byte(*addr),
			Func:      modbus.FuncReadHoldingRegisters,
			RegAddr:   reg,
			RegLen:    1,
			TimeoutMS: 500,
			OnComplete: func(data []byte, timedOut bool) {
				if timedOut {
					obs.ObserveRequestTimeout()
					logger.Warn("request timed out", "reg", reg)
					return
				}
				obs.ObserveFrameReceived()
				logger.Debug("read complete", "reg", reg, "value", data)
			},
		})
	}
	issueNext()

	if err := machine.Sched.CreatePeriodic(nil, func() {
		slave.Poll(slaveEnd)
	}, 1); err != nil {
		logger.Error("failed to schedule slave poll", "error", err)
		os.Exit(1)
	}
	if err := machine.Sched.CreatePeriodic(nil, func() {
		master.Poll(masterEnd)
	}, uint32(*periodMS)); err != nil {
		logger.Error("failed to schedule master poll", "error", err)
		os.Exit(1)
	}
	if err := machine.Sched.CreatePeriodic(nil, issueNext, 1000); err != nil {
		logger.Error("failed to schedule request cadence", "error", err)
		os.Exit(1)
	}

	logger.Info("simulation starting", "regs", numRegs, "slave_addr", *addr, "period_ms", *periodMS)
	fmt.Printf("vos-sim: %d registers, slave address 0x%02x, polling every %dms\n", numRegs, *addr, *periodMS)
	fmt.Println("Press Ctrl+C to stop...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				machine.Sched.Tick()
			}
		}
	}()

	done := make(chan error, 1)
	go func() { done <- machine.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case err := <-done:
		if err != nil {
			logger.Error("scheduler stopped with error", "error", err)
		}
	}
	cancel()

	snap := machine.Metrics().Snapshot()
	fmt.Printf("frames received=%d timeouts=%d\n", snap.FramesReceived, snap.RequestTimeouts)
}

func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)
	multiplier := int64(1)
	numStr := s
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	}
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * multiplier, nil
}
