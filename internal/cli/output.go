package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// console 终端输出，带颜色的提示行
type console struct {
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) header(format string, args ...interface{}) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintf(c.out, format+"\n", args...)
}

func (c *console) info(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "  "+format+"\n", args...)
}

func (c *console) success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(c.out, "✅ "+format+"\n", args...)
}

func (c *console) warn(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(c.out, "⚠️  "+format+"\n", args...)
}

func (c *console) fail(format string, args ...interface{}) {
	color.New(color.FgRed, color.Bold).Fprintf(c.out, "❌ "+format+"\n", args...)
}

func (c *console) hint(format string, args ...interface{}) {
	color.New(color.FgHiBlack).Fprintf(c.out, "   "+format+"\n", args...)
}

func (c *console) rule(width int) {
	fmt.Fprintln(c.out, strings.Repeat("=", width))
}
