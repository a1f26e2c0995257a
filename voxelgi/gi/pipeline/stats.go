package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// FrameStats describes one rendered frame. Counts, RegionErr are only set
// when region validation is on.
type FrameStats struct {
	Frame      uint64
	Backend    string
	Debug      bool
	DebugLevel int
	Stages     []StageTiming
	Total      time.Duration

	// Counters holds the profiler counts of the frame.
	Counters map[string]int

	Layout     volume.Layout
	Counts     []uint32
	RegionErr  error
	BarrierErr error
}

// WriteStats prints the pass timings and, when present, the per-level
// sparse counts against their regions.
func WriteStats(w io.Writer, s FrameStats) {
	fmt.Fprintf(w, "frame %d on %s", s.Frame, s.Backend)
	if s.Debug {
		fmt.Fprintf(w, " (voxel view, level %d)", s.DebugLevel)
	}
	fmt.Fprintln(w)
	if n, ok := s.Counters[CountObjects]; ok {
		fmt.Fprintf(w, "scene: %d objects, %d lit, %d culled\n", n, s.Counters[CountLitObjects], s.Counters[CountCulled])
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Time", "% of frame"})
	for _, st := range s.Stages {
		pct := 0.0
		if s.Total > 0 {
			pct = 100 * float64(st.Duration) / float64(s.Total)
		}
		table.Append([]string{st.Stage, st.Duration.String(), fmt.Sprintf("%02.1f %%", pct)})
	}
	table.SetFooter([]string{"TOTAL", s.Total.String(), ""})
	table.Render()

	if len(s.Counts) > 0 && s.Layout.Capacity() > 0 {
		regions := tablewriter.NewWriter(w)
		regions.SetAutoFormatHeaders(false)
		regions.SetAlignment(tablewriter.ALIGN_RIGHT)
		regions.SetHeader([]string{"Level", "Count", "Region", "Size", "Fill"})
		var total uint64
		for level := 0; level < s.Layout.Levels() && level < len(s.Counts); level++ {
			c := s.Counts[level]
			total += uint64(c)
			size := s.Layout.RegionSize(level)
			regions.Append([]string{
				fmt.Sprintf("%d", level),
				fmt.Sprintf("%d", c),
				fmt.Sprintf("[%d, %d)", s.Layout.BaseOffset(level), s.Layout.BaseOffset(level+1)),
				fmt.Sprintf("%d", size),
				fmt.Sprintf("%02.1f %%", 100*float64(c)/float64(max(size, 1))),
			})
		}
		regions.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", total), "", fmt.Sprintf("%d", s.Layout.Capacity()), ""})
		regions.Render()
	}

	if s.RegionErr != nil {
		fmt.Fprintf(w, "regions: %v\n", s.RegionErr)
	}
	if s.BarrierErr != nil {
		fmt.Fprintf(w, "barriers: %v\n", s.BarrierErr)
	}
}
