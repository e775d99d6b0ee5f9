package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// CommandSetter is the part of *tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// MenuCommands lists the described command routes of table, one entry per command.
func MenuCommands(table *dispatch.Table) []tele.Command {
	seen := make(map[string]bool)
	var list []tele.Command
	for _, r := range table.Commands() {
		name := strings.TrimPrefix(r.Command, "/")
		if r.Description == "" || seen[name] {
			continue
		}
		seen[name] = true
		list = append(list, tele.Command{Text: name, Description: r.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// SetupCommands publishes cmds as the bot's menu. Failures are logged and otherwise ignored.
func SetupCommands(ctx context.Context, bot CommandSetter, cmds []tele.Command) {
	if len(cmds) == 0 {
		return
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.Warn(ctx, "tg.wire", "commands.set",
			slog.String("status", "error"),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info(ctx, "tg.wire", "commands.set",
		slog.String("status", "ok"),
		slog.Int("count", len(cmds)),
	)
}
