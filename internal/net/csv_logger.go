package net

import (
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

var historyHeader = []string{"started_at", "params", "epoch", "loss", "elapsed_seconds"}

// CSVLogger records the loss history of every Fit call to a CSV file, one
// row per epoch. Rows carry the start time of their run and the parameter
// count of the network, so runs of different models can share one file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool
	Log      *slog.Logger

	file    *os.File
	w       *csv.Writer
	started time.Time
	params  string
	err     error
}

// NewCSVLogger creates a history logger for filename. With append set,
// earlier history in the file is kept and the header is written only once.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{Filename: filename, Append: append}
}

// Err returns the first error of the current or last run. Recording stops
// at that error; training is never interrupted by it.
func (c *CSVLogger) Err() error {
	return c.err
}

func (c *CSVLogger) OnTrainBegin(n *Network) {
	c.err = nil
	flags := os.O_CREATE | os.O_WRONLY
	if c.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, flags, 0o644)
	if err != nil {
		c.fail(err)
		return
	}
	c.file = file
	c.w = csv.NewWriter(file)
	c.started = time.Now()
	c.params = strconv.Itoa(len(n.Params()))

	info, err := file.Stat()
	if err != nil {
		c.fail(err)
		return
	}
	if info.Size() == 0 {
		c.write(historyHeader)
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, loss float64, n *Network) {
	c.write([]string{
		c.started.Format(time.RFC3339),
		c.params,
		strconv.Itoa(epoch + 1),
		strconv.FormatFloat(loss, 'f', 6, 64),
		strconv.FormatFloat(time.Since(c.started).Seconds(), 'f', 2, 64),
	})
}

func (c *CSVLogger) OnTrainEnd(n *Network) {
	c.close()
}

func (c *CSVLogger) write(record []string) {
	if c.w == nil {
		return
	}
	if err := c.w.Write(record); err != nil {
		c.fail(err)
		return
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.fail(err)
	}
}

func (c *CSVLogger) fail(err error) {
	if c.err == nil {
		c.err = err
		log := c.Log
		if log == nil {
			log = slog.Default()
		}
		log.Warn("training history disabled", "file", c.Filename, "error", err)
	}
	c.close()
}

func (c *CSVLogger) close() {
	if c.file == nil {
		return
	}
	var werr error
	if c.w != nil {
		c.w.Flush()
		werr = c.w.Error()
	}
	if err := errors.Join(werr, c.file.Close()); err != nil && c.err == nil {
		c.err = err
	}
	c.file, c.w = nil, nil
}
