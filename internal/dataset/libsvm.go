package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteLibSVM writes samples as LIBSVM lines: "label idx:count ...", with
// 1-based indices in ascending order.
func WriteLibSVM(w io.Writer, samples []Sample) error {
	bw := bufio.NewWriter(w)
	for _, s := range samples {
		bw.WriteString(strconv.FormatFloat(s.Example.Label, 'g', -1, 64))
		v := s.Example.Features
		for _, idx := range v.Indices() {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(idx + 1))
			bw.WriteByte(':')
			bw.WriteString(strconv.FormatFloat(v.Get(idx), 'g', -1, 64))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("dataset: write libsvm: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("dataset: write libsvm: %w", err)
	}
	return nil
}

// WriteLibSVMFile writes samples to path, replacing any existing file.
func WriteLibSVMFile(path string, samples []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	if err := WriteLibSVM(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
