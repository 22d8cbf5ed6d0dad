package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/lectern/internal/template"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// userInput is one user action addressed to the active block.
type userInput struct {
	pos  *position
	kind domain.InputKind
	raw  string
	key  string
}

// outcome tells the turn what to do after an input was applied.
type outcome struct {
	advance bool
}

// inputHandler applies one kind of user action. Handlers return *domain.ValidationError for
// input the user can correct; nothing they wrote is kept in that case.
type inputHandler interface {
	handle(ctx context.Context, t *turn, in userInput) (outcome, error)
}

// inputHandlerFor resolves the handler of an input kind.
func inputHandlerFor(kind domain.InputKind) (inputHandler, bool) {
	switch kind {
	case domain.InputText:
		return textInput{}, true
	case domain.InputContinue, domain.InputButton:
		return buttonInput{}, true
	case domain.InputSelect:
		return selectInput{}, true
	case domain.InputPhone:
		return phoneInput{}, true
	case domain.InputCheckCode:
		return checkCodeInput{}, true
	case domain.InputLogin:
		return loginInput{}, true
	case domain.InputPayment:
		return paymentInput{}, true
	case domain.InputGoto, domain.InputEmpty:
		return passInput{}, true
	}
	return nil, false
}

// accepts reports whether a block waiting for its interaction takes an input of kind.
func accepts(interaction domain.InteractionKind, kind domain.InputKind) bool {
	expected := domain.ExpectedInput(interaction)
	if expected == kind {
		return true
	}
	clicks := func(k domain.InputKind) bool { return k == domain.InputContinue || k == domain.InputButton }
	return clicks(expected) && clicks(kind)
}

// input applies the request's action to the active block. It returns the position to play
// from next, or nil when the turn is over. Stale, mismatched and re-delivered actions are
// dropped and the current block is replayed instead.
func (t *turn) input(ctx context.Context, pos *position) (*position, error) {
	block := pos.block
	log := t.log.With("block_id", block.ID, "input_kind", t.req.InputKind)

	if t.req.BlockID != "" && t.req.BlockID != block.ID {
		log.Debug("dropping input for a block that is no longer active", "requested_block_id", t.req.BlockID)
		return pos, nil
	}
	if !accepts(block.Interaction, t.req.InputKind) {
		log.Debug("dropping input the block does not take", "interaction", block.Interaction)
		return pos, nil
	}
	handler, ok := inputHandlerFor(t.req.InputKind)
	if !ok {
		log.Warn("dropping input of unknown kind")
		return pos, nil
	}

	key := actionKey(pos.record.ID, block.ID, t.req.InputKind, t.req.Input)
	if _, err := t.prog.tx.FindLogByKey(ctx, key); err == nil {
		log.Debug("dropping re-delivered input")
		return pos, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("look up action key: %w", err)
	}
	if t.req.BlockID == "" {
		repeated, err := t.repeatsLastAnswer(ctx, pos)
		if err != nil {
			return nil, err
		}
		if repeated {
			log.Debug("dropping unaddressed input that repeats the last answer")
			return pos, nil
		}
	}

	res, err := handler.handle(ctx, t, userInput{pos: pos, kind: t.req.InputKind, raw: t.req.Input, key: key})
	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		log.Debug("input rejected", "field", invalid.Field, "reason", invalid.Message)
		t.rollback()
		if err := t.begin(ctx); err != nil {
			return nil, err
		}
		if err := t.out.message(block.OutlineItemID, block.ID, invalid.Message); err != nil {
			return nil, err
		}
		if _, _, err := t.present(ctx, pos); err != nil {
			return nil, err
		}
		return nil, t.commit(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !res.advance {
		return pos, t.commit(ctx)
	}
	// The answer and the pointer move commit together: a retry either finds both or neither.
	next, err := t.prog.advance(ctx, t.root, 1)
	if err != nil {
		return nil, err
	}
	if err := t.flush(); err != nil {
		return nil, err
	}
	return next, t.commit(ctx)
}

// repeatsLastAnswer reports whether an input sent without a block id is the record's latest
// answer delivered again after the pointer moved on. Bare clicks carry no value and are
// never matched.
func (t *turn) repeatsLastAnswer(ctx context.Context, pos *position) (bool, error) {
	if t.req.InputKind == domain.InputContinue || strings.TrimSpace(t.req.Input) == "" {
		return false, nil
	}
	entries, err := t.prog.tx.ListLog(ctx, pos.record.ID)
	if err != nil {
		return false, fmt.Errorf("list log of %s: %w", pos.record.ID, err)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Role != domain.RoleUser {
			continue
		}
		return e.BlockID != pos.block.ID && e.Key == actionKey(pos.record.ID, e.BlockID, t.req.InputKind, t.req.Input), nil
	}
	return false, nil
}

// logUser appends the user's side of a block to the log under the action key.
func (t *turn) logUser(ctx context.Context, in userInput, content string) error {
	err := t.prog.tx.AppendLog(ctx, &domain.LogEntry{
		ID:         uuid.NewString(),
		ProgressID: in.pos.record.ID,
		BlockID:    in.pos.block.ID,
		Role:       domain.RoleUser,
		Content:    content,
		Key:        in.key,
		CreatedAt:  t.e.now(),
	})
	if err != nil {
		return fmt.Errorf("log user input: %w", err)
	}
	return nil
}

type textInput struct{}

// CheckResult is the JSON object a check prompt makes the model answer with.
type CheckResult struct {
	Success   bool              `mapstructure:"success"`
	Variables map[string]string `mapstructure:"variables"`
	Reason    string            `mapstructure:"reason"`
}

func (textInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	p := in.pos.block.Payload
	text := strings.TrimSpace(in.raw)
	if text == "" {
		return outcome{}, &domain.ValidationError{Field: p.Variable, Message: t.e.messages.EmptyInput}
	}
	if err := t.e.screen(ctx, text); err != nil {
		return outcome{}, err
	}

	values := make(map[string]string)
	if p.CheckPrompt != "" {
		res, err := t.check(ctx, in.pos, text)
		if err != nil {
			return outcome{}, err
		}
		if !res.Success {
			reason := res.Reason
			if reason == "" {
				reason = t.e.messages.CheckFailed
			}
			return outcome{}, &domain.ValidationError{Field: p.Variable, Message: reason}
		}
		for k, v := range res.Variables {
			if len(p.Extract) == 0 || containsString(p.Extract, k) {
				values[k] = v
			}
		}
	}
	if p.Variable != "" {
		if _, ok := values[p.Variable]; !ok {
			values[p.Variable] = text
		}
	}
	if err := t.setVariables(ctx, values); err != nil {
		return outcome{}, err
	}
	return outcome{advance: true}, t.logUser(ctx, in, text)
}

// check asks the model to judge free text. The check prompt sees the answer as {input}.
func (t *turn) check(ctx context.Context, pos *position, text string) (CheckResult, error) {
	vars, err := t.variables(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	scoped := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		scoped[k] = v
	}
	scoped["input"] = text

	p := pos.block.Payload
	reply, err := t.complete(ctx, ports.ModelRequest{
		Model:       p.Model,
		Prompt:      template.Render(p.CheckPrompt, scoped),
		Temperature: p.Temperature,
		JSON:        true,
	})
	if err != nil {
		return CheckResult{}, err
	}
	return parseCheckResult(reply)
}

// parseCheckResult extracts the first JSON object of a model reply. Loosely typed values
// ("true", numbers as variables) are accepted.
func parseCheckResult(reply string) (CheckResult, error) {
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return CheckResult{}, &domain.UpstreamError{Service: "model", Err: fmt.Errorf("check reply is not a JSON object: %q", reply)}
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return CheckResult{}, &domain.UpstreamError{Service: "model", Err: fmt.Errorf("decode check reply: %w", err)}
	}
	var res CheckResult
	if err := mapstructure.WeakDecode(raw, &res); err != nil {
		return CheckResult{}, &domain.UpstreamError{Service: "model", Err: fmt.Errorf("decode check reply: %w", err)}
	}
	return res, nil
}

// complete runs a model request to the end and returns the whole reply.
func (t *turn) complete(ctx context.Context, req ports.ModelRequest) (string, error) {
	if t.e.model == nil {
		return "", &domain.UpstreamError{Service: "model", Err: errors.New("no model configured")}
	}
	stream, err := t.e.model.Stream(ctx, req)
	if err != nil {
		return "", &domain.UpstreamError{Service: "model", Err: err}
	}
	defer stream.Close()
	var b strings.Builder
	for {
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", &domain.UpstreamError{Service: "model", Err: err}
		}
		b.WriteString(tok)
	}
}

type buttonInput struct{}

func (buttonInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	content := strings.TrimSpace(in.raw)
	if content == "" {
		content = string(domain.InputContinue)
	} else if v := in.pos.block.Payload.Variable; v != "" {
		if err := t.e.screen(ctx, content); err != nil {
			return outcome{}, err
		}
		if err := t.setVariables(ctx, map[string]string{v: content}); err != nil {
			return outcome{}, err
		}
	}
	return outcome{advance: true}, t.logUser(ctx, in, content)
}

type selectInput struct{}

func (selectInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	p := in.pos.block.Payload
	options, err := t.options(ctx, in.pos.block)
	if err != nil {
		return outcome{}, err
	}
	invalid := &domain.ValidationError{Field: p.Variable, Message: t.e.messages.InvalidOption}

	picked := parseSelection(in.raw, p.Multiple)
	if len(picked) == 0 || (!p.Multiple && len(picked) > 1) {
		return outcome{}, invalid
	}
	for i, v := range picked {
		canonical, ok := matchOption(options, v)
		if !ok {
			return outcome{}, invalid
		}
		picked[i] = canonical
	}
	value := strings.Join(picked, ",")
	if p.Variable != "" {
		if err := t.setVariables(ctx, map[string]string{p.Variable: value}); err != nil {
			return outcome{}, err
		}
	}
	return outcome{advance: true}, t.logUser(ctx, in, value)
}

// options returns the choices of a select block: its own list, or the comma separated
// value of the variable it names.
func (t *turn) options(ctx context.Context, b domain.Block) ([]string, error) {
	if len(b.Payload.Options) > 0 || b.Payload.OptionsFrom == "" {
		return b.Payload.Options, nil
	}
	vars, err := t.variables(ctx)
	if err != nil {
		return nil, err
	}
	return splitList(vars[b.Payload.OptionsFrom]), nil
}

// parseSelection accepts a JSON array or a comma separated list.
func parseSelection(raw string, multiple bool) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !multiple {
		return []string{raw}
	}
	var list []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &list) == nil {
		return compact(list)
	}
	return splitList(raw)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return compact(strings.Split(s, ","))
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchOption(options []string, v string) (string, bool) {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), v) {
			return o, true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type phoneInput struct{}

func (phoneInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(in.raw))
	if !mobilePattern.MatchString(phone) {
		return outcome{}, &domain.ValidationError{Field: "phone", Message: t.e.messages.InvalidPhone}
	}
	if t.e.codes == nil {
		return outcome{}, &domain.UpstreamError{Service: "codes", Err: errors.New("no code service configured")}
	}
	if err := t.e.codes.Send(ctx, t.req.UserID, phone); err != nil {
		return outcome{}, &domain.UpstreamError{Service: "codes", Err: err}
	}
	return outcome{advance: true}, t.logUser(ctx, in, phone)
}

type checkCodeInput struct{}

func (checkCodeInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	if t.e.codes == nil {
		return outcome{}, &domain.UpstreamError{Service: "codes", Err: errors.New("no code service configured")}
	}
	phone, err := t.e.codes.Verify(ctx, t.req.UserID, strings.TrimSpace(in.raw))
	switch {
	case errors.Is(err, domain.ErrCodeExpired):
		return outcome{}, &domain.ValidationError{Field: "code", Message: t.e.messages.CodeExpired}
	case errors.Is(err, domain.ErrCodeMismatch):
		return outcome{}, &domain.ValidationError{Field: "code", Message: t.e.messages.CodeMismatch}
	case err != nil:
		return outcome{}, &domain.UpstreamError{Service: "codes", Err: err}
	}

	profile, err := t.profile(ctx)
	if err != nil {
		return outcome{}, err
	}
	profile.Phone = phone
	profile.Verified = true
	profile.UpdatedAt = t.e.now()
	if t.e.profiles != nil {
		if err := t.e.profiles.SaveProfile(ctx, profile); err != nil {
			return outcome{}, &domain.UpstreamError{Service: "profiles", Err: err}
		}
	}

	variable := in.pos.block.Payload.Variable
	if variable == "" {
		variable = "phone"
	}
	if err := t.setVariables(ctx, map[string]string{variable: phone}); err != nil {
		return outcome{}, err
	}
	if err := t.out.send(domain.Frame{
		Type:          domain.FrameUserLogin,
		Content:       profile,
		OutlineItemID: in.pos.block.OutlineItemID,
		BlockID:       in.pos.block.ID,
	}); err != nil {
		return outcome{}, err
	}
	return outcome{advance: true}, t.logUser(ctx, in, in.raw)
}

// profile loads the user's profile, or a fresh one.
func (t *turn) profile(ctx context.Context) (*domain.Profile, error) {
	fresh := &domain.Profile{UserID: t.req.UserID}
	if t.e.profiles == nil {
		return fresh, nil
	}
	p, err := t.e.profiles.GetProfile(ctx, t.req.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return fresh, nil
	}
	if err != nil {
		return nil, &domain.UpstreamError{Service: "profiles", Err: err}
	}
	return p, nil
}

type loginInput struct{}

func (loginInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	ok, err := loggedIn(ctx, t.e.profiles, t.req.UserID)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		return outcome{}, &domain.ValidationError{Field: "login", Message: t.e.messages.NotVerified}
	}
	return outcome{advance: true}, t.logUser(ctx, in, string(domain.InputLogin))
}

type paymentInput struct{}

func (paymentInput) handle(ctx context.Context, t *turn, in userInput) (outcome, error) {
	ok, err := paid(ctx, t.e.payments, t.req.UserID, in.pos.block.Payload.Product)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		return outcome{}, &domain.ValidationError{Field: "order", Message: t.e.messages.NotPaid}
	}
	return outcome{advance: true}, t.logUser(ctx, in, string(domain.InputPayment))
}

// passInput covers kinds with no effect of their own; goto blocks branch when presented.
type passInput struct{}

func (passInput) handle(context.Context, *turn, userInput) (outcome, error) {
	return outcome{}, nil
}
