package dsl

import (
	"fmt"

	"github.com/aretw0/lectern/pkg/domain"
)

// LessonBuilder appends blocks to a lesson. Modifiers such as ID, Model or Check apply to
// the block appended last.
type LessonBuilder struct {
	course *CourseBuilder
	id     string
	item   int
	blocks int
}

// When builds a goto rule.
func When(value, target string) domain.JumpRule {
	return domain.JumpRule{Value: value, Target: target}
}

func (l *LessonBuilder) add(content domain.ContentKind, interaction domain.InteractionKind, p domain.Payload) *LessonBuilder {
	l.blocks++
	l.course.course.Blocks = append(l.course.course.Blocks, domain.Block{
		ID:            fmt.Sprintf("%s-%d", l.id, l.blocks),
		OutlineItemID: l.id,
		Order:         l.blocks,
		Content:       content,
		Interaction:   interaction,
		Payload:       p,
	})
	return l
}

func (l *LessonBuilder) last() *domain.Block {
	if l.blocks == 0 {
		l.course.errs = append(l.course.errs, fmt.Errorf("lesson %s: modifier used before any block", l.id))
		return &domain.Block{}
	}
	return &l.course.course.Blocks[len(l.course.course.Blocks)-1]
}

// Trial marks the lesson as a free preview.
func (l *LessonBuilder) Trial() *LessonBuilder {
	l.course.course.Items[l.item].Kind = domain.ItemTrial
	return l
}

// Hidden makes the lesson reachable only through a goto.
func (l *LessonBuilder) Hidden() *LessonBuilder {
	l.course.course.Items[l.item].Kind = domain.ItemHidden
	return l
}

// Text appends a block that is shown and passed through without waiting.
func (l *LessonBuilder) Text(text string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionNone, domain.Payload{Text: text})
}

// Image appends a media reference.
func (l *LessonBuilder) Image(url string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionNone, domain.Payload{Text: url, Image: true})
}

// Continue appends a block that waits for the continue button.
func (l *LessonBuilder) Continue(text string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionContinue, domain.Payload{Text: text})
}

// Button appends a block that waits for a single labelled button.
func (l *LessonBuilder) Button(text, label string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionButton, domain.Payload{Text: text, Label: label})
}

// Ask appends a free text input stored in variable.
func (l *LessonBuilder) Ask(label, variable string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionInput, domain.Payload{Label: label, Variable: variable})
}

// Select appends a choice among options stored in variable.
func (l *LessonBuilder) Select(variable string, options ...string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionSelect, domain.Payload{Variable: variable, Options: options})
}

// SelectFrom appends a choice whose options are read from the comma separated value of source.
func (l *LessonBuilder) SelectFrom(variable, source string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionSelect, domain.Payload{Variable: variable, OptionsFrom: source})
}

// Goto appends a branch on the value of variable.
func (l *LessonBuilder) Goto(variable string, rules ...domain.JumpRule) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionGoto, domain.Payload{Variable: variable, Rules: rules})
}

// Prompt appends a block whose text is generated by the language model.
func (l *LessonBuilder) Prompt(prompt string) *LessonBuilder {
	return l.add(domain.ContentPrompt, domain.InteractionNone, domain.Payload{Text: prompt})
}

// System appends the system prompt used by prompt blocks of the lesson.
func (l *LessonBuilder) System(prompt string) *LessonBuilder {
	return l.add(domain.ContentSystem, domain.InteractionNone, domain.Payload{Text: prompt})
}

// Payment appends an order for product at price, in minor units.
func (l *LessonBuilder) Payment(text, product string, price int64) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionPayment, domain.Payload{Text: text, Product: product, Price: price})
}

// Phone appends a phone number request.
func (l *LessonBuilder) Phone(label string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionPhone, domain.Payload{Label: label})
}

// CheckCode appends the verification of the code sent to the collected phone.
func (l *LessonBuilder) CheckCode(label string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionCheckCode, domain.Payload{Label: label})
}

// Login appends a login request.
func (l *LessonBuilder) Login(label string) *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionLogin, domain.Payload{Label: label})
}

// Break appends a pause that ends the turn.
func (l *LessonBuilder) Break() *LessonBuilder {
	return l.add(domain.ContentFixed, domain.InteractionBreak, domain.Payload{})
}

// Then changes the interaction of the last block.
func (l *LessonBuilder) Then(interaction domain.InteractionKind) *LessonBuilder {
	l.last().Interaction = interaction
	return l
}

// ID overrides the generated id of the last block.
func (l *LessonBuilder) ID(id string) *LessonBuilder {
	l.last().ID = id
	return l
}

// Multiple allows several options on the last select block.
func (l *LessonBuilder) Multiple() *LessonBuilder {
	l.last().Payload.Multiple = true
	return l
}

// Model selects the model and temperature used by the last block.
func (l *LessonBuilder) Model(name string, temperature float64) *LessonBuilder {
	b := l.last()
	b.Payload.Model = name
	b.Payload.Temperature = temperature
	return l
}

// Check validates the answer to the last input block with the model.
func (l *LessonBuilder) Check(prompt string, extract ...string) *LessonBuilder {
	b := l.last()
	b.Payload.CheckPrompt = prompt
	b.Payload.Extract = extract
	return l
}
