package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
)

// Tracker 按分块显示翻译进度，实现 translation.ProgressReporter
type Tracker struct {
	mu sync.Mutex

	totalChunks     int
	completedChunks int
	startTime       time.Time
	lastUpdateTime  time.Time
	speedSamples    []float64 // 分块/秒
	maxSpeedSamples int
	writer          io.Writer
	refreshInterval time.Duration
	isActive        bool
	isDone          bool
	stopCh          chan struct{}

	barWidth      int
	labelWidth    int
	completedChar string
	remainingChar string

	percentColor text.Colors
	barColor     text.Colors
	statsColor   text.Colors
	timeColor    text.Colors
	messageColor text.Colors

	message string
}

// Option 定义进度跟踪器的选项
type Option func(*Tracker)

// NewTracker 创建进度跟踪器
func NewTracker(totalChunks int, options ...Option) *Tracker {
	now := time.Now()
	pt := &Tracker{
		totalChunks:     totalChunks,
		startTime:       now,
		lastUpdateTime:  now,
		speedSamples:    make([]float64, 0, 10),
		maxSpeedSamples: 10,
		writer:          os.Stderr,
		refreshInterval: time.Second,
		barWidth:        40,
		labelWidth:      24,
		completedChar:   "█",
		remainingChar:   "░",
		percentColor:    text.Colors{text.FgHiWhite},
		barColor:        text.Colors{text.FgCyan},
		statsColor:      text.Colors{text.FgHiBlack},
		timeColor:       text.Colors{text.FgGreen},
		messageColor:    text.Colors{text.FgWhite},
		message:         "Translating",
	}

	for _, option := range options {
		option(pt)
	}
	return pt
}

// WithWriter 设置输出写入器
func WithWriter(writer io.Writer) Option {
	return func(pt *Tracker) {
		pt.writer = writer
	}
}

// WithRefreshInterval 设置刷新间隔，<= 0 时只在进度变化时渲染
func WithRefreshInterval(interval time.Duration) Option {
	return func(pt *Tracker) {
		pt.refreshInterval = interval
	}
}

// WithMessage 设置进度条标签
func WithMessage(message string) Option {
	return func(pt *Tracker) {
		pt.message = message
	}
}

// WithBarWidth 设置进度条宽度
func WithBarWidth(width int) Option {
	return func(pt *Tracker) {
		pt.barWidth = width
	}
}

// Start 开始进度跟踪
func (pt *Tracker) Start() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isActive {
		return
	}
	pt.isActive = true
	pt.startTime = time.Now()
	pt.lastUpdateTime = pt.startTime
	pt.render()

	if pt.refreshInterval > 0 {
		pt.stopCh = make(chan struct{})
		go pt.refreshLoop(pt.stopCh)
	}
}

// refreshLoop 定时刷新，更新已用时间
func (pt *Tracker) refreshLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pt.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pt.mu.Lock()
			if pt.isActive && time.Since(pt.lastUpdateTime) > pt.refreshInterval/2 {
				pt.render()
			}
			pt.mu.Unlock()
		}
	}
}

// Report 更新已完成分块数
func (pt *Tracker) Report(completed, total int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isDone {
		return
	}
	pt.totalChunks = total

	delta := completed - pt.completedChunks
	now := time.Now()
	if elapsed := now.Sub(pt.lastUpdateTime).Seconds(); elapsed > 0 && delta > 0 {
		if len(pt.speedSamples) >= pt.maxSpeedSamples {
			pt.speedSamples = pt.speedSamples[1:]
		}
		pt.speedSamples = append(pt.speedSamples, float64(delta)/elapsed)
	}
	pt.completedChunks = completed
	pt.lastUpdateTime = now

	if pt.isActive {
		pt.render()
	}
}

// Completed 返回已完成分块数
func (pt *Tracker) Completed() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return pt.completedChunks
}

// GetPercentage 获取完成百分比
func (pt *Tracker) GetPercentage() float64 {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	return pt.percentLocked()
}

// Stop 停止刷新，进度条停在当前位置
func (pt *Tracker) Stop() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.stopLocked()
}

// Done 停止进度条并打印总结表格
func (pt *Tracker) Done(summary *SummaryStats) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.stopLocked()
	pt.isDone = true

	if summary != nil {
		if summary.TotalTime == 0 {
			summary.TotalTime = time.Since(pt.startTime)
		}
		pt.renderSummaryTable(summary)
	}
}

func (pt *Tracker) stopLocked() {
	if !pt.isActive {
		return
	}
	pt.isActive = false
	if pt.stopCh != nil {
		close(pt.stopCh)
		pt.stopCh = nil
	}
	pt.render()
	fmt.Fprintln(pt.writer)
}

func (pt *Tracker) percentLocked() float64 {
	if pt.totalChunks <= 0 {
		return 0
	}
	return float64(pt.completedChunks) / float64(pt.totalChunks) * 100
}

// getSpeedLocked 加权平均速度，越新的样本权重越高
func (pt *Tracker) getSpeedLocked() float64 {
	if len(pt.speedSamples) == 0 {
		elapsed := time.Since(pt.startTime).Seconds()
		if elapsed > 0 && pt.completedChunks > 0 {
			return float64(pt.completedChunks) / elapsed
		}
		return 0
	}

	var sum, weights float64
	for i, speed := range pt.speedSamples {
		weight := float64(i + 1)
		sum += speed * weight
		weights += weight
	}
	return sum / weights
}

// render 渲染进度条
func (pt *Tracker) render() {
	if pt.writer == nil {
		return
	}

	var builder strings.Builder
	builder.WriteString("\r\x1b[K")

	if pt.message != "" {
		label := runewidth.Truncate(pt.message, pt.labelWidth, "…")
		builder.WriteString(pt.messageColor.Sprint(runewidth.FillRight(label, pt.labelWidth)))
		builder.WriteString(" ")
	}

	builder.WriteString(pt.percentColor.Sprint(fmt.Sprintf("%5.1f%%", pt.percentLocked())))
	builder.WriteString(" [")
	completedWidth := 0
	if pt.totalChunks > 0 {
		completedWidth = pt.barWidth * pt.completedChunks / pt.totalChunks
		if completedWidth > pt.barWidth {
			completedWidth = pt.barWidth
		}
	}
	if completedWidth > 0 {
		builder.WriteString(pt.barColor.Sprint(strings.Repeat(pt.completedChar, completedWidth)))
	}
	builder.WriteString(strings.Repeat(pt.remainingChar, pt.barWidth-completedWidth))
	builder.WriteString("] ")

	builder.WriteString(pt.statsColor.Sprint(fmt.Sprintf("%d/%d chunks", pt.completedChunks, pt.totalChunks)))
	builder.WriteString(" ")
	builder.WriteString(pt.timeColor.Sprint("elapsed " + formatDuration(time.Since(pt.startTime))))

	if speed := pt.getSpeedLocked(); speed > 0 && pt.completedChunks < pt.totalChunks {
		remaining := float64(pt.totalChunks-pt.completedChunks) / speed
		eta := time.Duration(remaining * float64(time.Second))
		builder.WriteString(" ")
		builder.WriteString(pt.timeColor.Sprint("ETA " + formatDuration(eta)))
	}

	fmt.Fprint(pt.writer, builder.String())
}

// formatDuration 格式化时间间隔
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm%ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// SummaryStats 最终总结表格的数据
type SummaryStats struct {
	Outcome         string
	CompletedChunks int
	TotalChunks     int
	InputChars      int
	OutputChars     int
	TotalTime       time.Duration
	OutputPath      string // 为空表示未写出
	Requests        int64
	Retries         int64
	TokensIn        int64
	TokensOut       int64
	AverageLatency  time.Duration
}

// maxPathWidth 表格中路径列的最大显示宽度
const maxPathWidth = 60

// renderSummaryTable 渲染最终的总结表格
func (pt *Tracker) renderSummaryTable(stats *SummaryStats) {
	if pt.writer == nil || stats == nil {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(pt.writer)
	tw.SetStyle(table.StyleLight)

	tw.AppendHeader(table.Row{"Item", "Value"})
	tw.AppendRow(table.Row{"Outcome", stats.Outcome})
	tw.AppendRow(table.Row{"Chunks", fmt.Sprintf("%d/%d", stats.CompletedChunks, stats.TotalChunks)})
	tw.AppendRow(table.Row{"Input characters", stats.InputChars})
	tw.AppendRow(table.Row{"Output characters", stats.OutputChars})
	tw.AppendRow(table.Row{"Elapsed", formatDuration(stats.TotalTime)})

	output := "(not written)"
	if stats.OutputPath != "" {
		output = truncateLeft(stats.OutputPath, maxPathWidth)
	}
	tw.AppendRow(table.Row{"Output", output})

	if stats.Requests > 0 {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"Model requests", stats.Requests})
		tw.AppendRow(table.Row{"Retries", stats.Retries})
		tw.AppendRow(table.Row{"Tokens in / out", fmt.Sprintf("%d / %d", stats.TokensIn, stats.TokensOut)})
		tw.AppendRow(table.Row{"Average latency", formatDuration(stats.AverageLatency)})
	}

	tw.Render()
}

// truncateLeft 保留路径末尾，超出部分用省略号替代
func truncateLeft(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail)+1 <= width {
			return "…" + tail
		}
	}
	return "…"
}
