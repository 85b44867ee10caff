// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// statRow is one (name, value) line of the stats table.
type statRow struct {
	name, value string
}

type progressUpdate struct {
	amount int
	rows   []statRow
}

// progress displays a progress bar for one epoch, with a table of the latest losses above it.
// Updates are drawn asynchronously, so a slow terminal doesn't slow down training.
type progress struct {
	bar           *progressbar.ProgressBar
	termenv       *termenv.Output
	statsStyle    lipgloss.Style
	statsTable    *lgtable.Table
	isFirstOutput bool
	lastNumRows   int

	updates chan progressUpdate
	done    sync.WaitGroup
}

func newProgress(numSteps int, description string) *progress {
	p := &progress{
		isFirstOutput: true,
		termenv:       termenv.NewOutput(os.Stdout),
		statsStyle:    lipgloss.NewStyle().PaddingLeft(8),
		updates:       make(chan progressUpdate, 100),
	}
	p.bar = progressbar.NewOptions(numSteps,
		progressbar.OptionSetDescription(description),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(os.Stdout),
	)
	p.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	p.done.Add(1)
	go p.draw()
	return p
}

// Add enqueues the completion of amount steps, with the current stats.
func (p *progress) Add(amount int, rows ...statRow) {
	p.updates <- progressUpdate{amount: amount, rows: rows}
}

// Close waits for pending updates to be drawn.
func (p *progress) Close() {
	close(p.updates)
	p.done.Wait()
	p.termenv.ShowCursor()
	fmt.Println()
}

func (p *progress) draw() {
	defer p.done.Done()
	for update := range p.updates {
		// Exhaust the updates in the buffer, keeping only the latest stats.
		amount := update.amount
	exhaust:
		for {
			select {
			case newUpdate, ok := <-p.updates:
				if !ok {
					break exhaust
				}
				amount += newUpdate.amount
				update = newUpdate
			default:
				break exhaust
			}
		}

		p.statsTable.Data(lgtable.NewStringData())
		for _, row := range update.rows {
			p.statsTable.Row(row.name, row.value)
		}
		p.termenv.HideCursor()
		if !p.isFirstOutput {
			// Rows plus table borders plus the progress bar line and the empty line after it.
			p.termenv.CursorPrevLine(p.lastNumRows + 2 + 2)
		}
		p.isFirstOutput = false
		p.lastNumRows = len(update.rows)

		fmt.Println(p.statsStyle.Render(p.statsTable.String()))
		_ = p.bar.Add(amount)
		fmt.Println()
		p.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}
