package slash

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"companion/internal/chat"
	"companion/internal/contextmgr"
	"companion/internal/i18n"
	"companion/internal/media"
	"companion/internal/observability"
	"companion/internal/provider"
	"companion/internal/session"

	"github.com/google/uuid"
)

// Result 命令执行结果，前端据此刷新界面
// Result is what a front end needs to refresh after a command or a message
type Result struct {
	Output  string      // informational text, not part of the conversation
	Turns   []chat.Turn // conversation snapshot after the step
	Context contextmgr.Info
	Audio   string // mp3 path from /play
	Quit    bool
}

// Runner 把命令和普通消息交给会话管理器
// Runner routes commands and plain messages to the session manager
type Runner struct {
	Manager   *session.Manager
	Gateway   provider.Gateway
	Messages  *i18n.I18n
	UploadDir string
	Models    []string // configured models, merged with the provider list
	// SaveModel persists a /model choice; optional
	SaveModel func(model string) error
}

// Send 处理一行用户输入：命令或普通消息
// Send handles one line of user input, either a command or a message
func (r *Runner) Send(ctx context.Context, s *session.Session, input string) (Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}, fmt.Errorf("%s", r.Messages.T("error.empty_input"))
	}
	ctx = observability.WithRequestID(ctx, uuid.NewString())
	if IsCommand(input) {
		cmd, err := Parse(input)
		if err != nil {
			return Result{}, err
		}
		return r.Run(ctx, s, cmd)
	}
	_, err := r.Manager.Exchange(ctx, s, input, "")
	res := r.snapshot(s)
	if err != nil {
		res.Output = r.Messages.T("error.persist", err.Error())
	}
	return res, nil
}

func (r *Runner) Run(ctx context.Context, s *session.Session, cmd Command) (Result, error) {
	t := r.Messages
	switch cmd.Kind {
	case Help:
		res := r.snapshot(s)
		res.Output = r.help()
		return res, nil

	case Quit:
		return Result{Quit: true}, nil

	case Clear:
		err := r.Manager.Clear(ctx, s)
		res := r.snapshot(s)
		res.Output = t.T("session.cleared")
		if err != nil {
			res.Output = t.T("error.persist", err.Error())
		}
		return res, nil

	case Model:
		res := r.snapshot(s)
		if cmd.Model == "" {
			res.Output = t.T("model.current", r.Manager.CurrentModel())
			return res, nil
		}
		if err := r.Gateway.SetModel(cmd.Model); err != nil {
			return Result{}, err
		}
		if r.SaveModel != nil {
			if err := r.SaveModel(cmd.Model); err != nil {
				return Result{}, fmt.Errorf("save model: %w", err)
			}
		}
		res.Output = t.T("model.switched", cmd.Model)
		return res, nil

	case Models:
		models, err := r.ListModels(ctx)
		res := r.snapshot(s)
		switch {
		case err != nil && len(models) == 0:
			res.Output = t.T("error.models", err.Error())
		case len(models) == 0:
			res.Output = t.T("model.none")
		default:
			current := r.Manager.CurrentModel()
			lines := make([]string, 0, len(models))
			for _, m := range models {
				marker := "  "
				if m == current {
					marker = "* "
				}
				lines = append(lines, marker+m)
			}
			res.Output = strings.Join(lines, "\n")
		}
		return res, nil

	case Image:
		upload, err := media.StageFile(r.UploadDir, cmd.Path)
		if err != nil {
			return Result{}, err
		}
		_, err = r.Manager.AnalyzeImage(ctx, s, upload, cmd.Mode, cmd.Question)
		res := r.snapshot(s)
		if err != nil {
			res.Output = t.T("error.persist", err.Error())
		}
		return res, nil

	case Play:
		turn, ok := s.AssistantTurn(cmd.N)
		if !ok {
			return Result{}, fmt.Errorf("%s", t.T("audio.none"))
		}
		path, err := r.Manager.Speak(ctx, turn)
		if err != nil {
			return Result{}, fmt.Errorf("%s", t.T("audio.error", err.Error()))
		}
		res := r.snapshot(s)
		res.Audio = path
		res.Output = t.T("audio.saved", path)
		return res, nil
	}
	return Result{}, fmt.Errorf("%s", t.T("error.unknown_command", cmd.Kind))
}

// ListModels 合并配置中的模型和提供方返回的模型；提供方失败时仍返回配置中的模型
// ListModels merges configured and provider models; configured ones survive a provider failure
func (r *Runner) ListModels(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, m := range r.Models {
		add(m)
	}
	infos, err := r.Gateway.ListModels(ctx)
	remote := make([]string, 0, len(infos))
	for _, info := range infos {
		remote = append(remote, info.ID)
	}
	sort.Strings(remote)
	for _, m := range remote {
		add(m)
	}
	return out, err
}

func (r *Runner) help() string {
	descKey := map[Kind]string{
		Help: "cmd.help", Clear: "cmd.clear", Model: "cmd.model", Models: "cmd.models",
		Image: "cmd.image", Play: "cmd.play", Quit: "cmd.quit",
	}
	var b strings.Builder
	for _, k := range Order {
		fmt.Fprintf(&b, "  %-44s %s\n", Usage[k], r.Messages.T(descKey[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Runner) snapshot(s *session.Session) Result {
	return Result{Turns: s.Turns(), Context: r.Manager.ContextInfo(s)}
}
