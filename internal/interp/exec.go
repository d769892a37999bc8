package interp

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"marcer/internal/dsl"
	"marcer/internal/marc"
)

// exec runs one instruction against one record. false is an ordinary
// instruction failure; an error aborts the run.
func (in *Interpreter) exec(ctx context.Context, inst dsl.Instruction, rec *marc.Record) (bool, error) {
	switch i := inst.(type) {
	case *dsl.SetPosition:
		return in.setPosition(i, rec), nil
	case *dsl.AddField:
		rec.AddField(i.Tag, i.Text)
		return true, nil
	case *dsl.DeleteField:
		return rec.RemoveFields(i.Tag, i.Match), nil
	case *dsl.AppendOrPrepend:
		found, _ := rec.UpdateFields(i.Tag, func(c marc.Content) (marc.Content, bool) {
			if i.Prepend {
				return c.Prepend(i.Text), true
			}
			return c.Append(i.Text), true
		})
		return found, nil
	case *dsl.Print:
		return in.print(i, rec)
	case *dsl.LanguageFilter:
		return in.languageFilter(i, rec)
	case *dsl.ConditionalOnContent:
		return in.branch(ctx, rec, matchContent(i, rec), i.Then, i.Else)
	case *dsl.ConditionalOnPosition:
		matched, err := matchPosition(i, rec)
		if err != nil {
			return false, err
		}
		return in.branch(ctx, rec, matched, i.Then, i.Else)
	case *dsl.VariableAssign:
		// Applied when parsed.
		return true, nil
	case *dsl.URLValidityTest:
		return in.testURLs(ctx, i, rec), nil
	case *dsl.WriteOutput:
		return true, in.buffer(ctx, i, rec)
	case *dsl.Touch:
		if !in.rc.OutputChangedOnly {
			return false, nil
		}
		rec.Touch()
		return true, nil
	case *dsl.URLDecode:
		return decodeURLs(i, rec), nil
	}
	return false, fmt.Errorf("unsupported instruction %T", inst)
}

func (in *Interpreter) setPosition(i *dsl.SetPosition, rec *marc.Record) bool {
	if i.Subject.Kind == dsl.SubjectLeader {
		return rec.SetLeaderByte(i.Position, i.Value) == nil
	}
	short := 0
	found, _ := rec.UpdateFields(i.Subject.Tag, func(c marc.Content) (marc.Content, bool) {
		n, err := c.WithByte(i.Position, i.Value)
		if err != nil {
			short++
			return c, false
		}
		return n, true
	})
	if short > 0 {
		in.log.Debug("position past end of field",
			zap.String("control_number", rec.ControlNumber()),
			zap.Stringer("tag", i.Subject.Tag),
			zap.Int("position", i.Position),
			zap.Int("fields", short))
	}
	return found && short == 0
}

func (in *Interpreter) print(i *dsl.Print, rec *marc.Record) (bool, error) {
	var out string
	switch i.Subject.Kind {
	case dsl.SubjectRecord:
		out = rec.String()
	case dsl.SubjectLeader:
		out = rec.Leader().String() + "\n"
	default:
		texts := make([]string, 0, 1)
		for _, c := range rec.Fields(i.Subject.Tag) {
			texts = append(texts, c.String())
		}
		out = strings.Join(texts, "\n") + "\n"
	}
	if _, err := io.WriteString(in.rc.Stdout, out); err != nil {
		return false, fmt.Errorf("print: %w", err)
	}
	in.rc.Printed++
	return true, nil
}

// languageFilter deselects the record under gating, then reselects it when
// the language matches. A missing or short 008 is fatal.
func (in *Interpreter) languageFilter(i *dsl.LanguageFilter, rec *marc.Record) (bool, error) {
	if in.rc.OutputChangedOnly {
		rec.Untouch()
	}
	ok, err := rec.MatchesLanguage(i.Language)
	if err != nil {
		return false, err
	}
	if ok {
		in.mark(rec)
	}
	return ok, nil
}

func matchContent(i *dsl.ConditionalOnContent, rec *marc.Record) bool {
	switch i.Subject.Kind {
	case dsl.SubjectLeader:
		return i.Pattern.MatchString(rec.Leader().String())
	case dsl.SubjectRecord:
		for _, e := range rec.Entries() {
			if i.Pattern.MatchString(e.Content.String()) {
				return true
			}
		}
		return false
	}
	for _, c := range rec.Fields(i.Subject.Tag) {
		if i.Pattern.MatchString(c.String()) {
			return true
		}
	}
	return false
}

func matchPosition(i *dsl.ConditionalOnPosition, rec *marc.Record) (bool, error) {
	if i.Subject.Kind == dsl.SubjectLeader {
		b, err := rec.Leader().At(i.Position)
		if err != nil {
			return false, err
		}
		return b == i.Value, nil
	}
	matched := false
	for _, c := range rec.Fields(i.Subject.Tag) {
		b, err := c.At(i.Position)
		if err != nil {
			return false, fmt.Errorf("%w: position %d of %s (length %d)", err, i.Position, i.Subject.Tag, c.Len())
		}
		if b == i.Value {
			matched = true
		}
	}
	return matched, nil
}

// branch runs then or els. It reports true when the branch that ran had
// instructions and all of them succeeded, or when the test matched and
// then is empty.
func (in *Interpreter) branch(ctx context.Context, rec *marc.Record, matched bool, then, els []dsl.Instruction) (bool, error) {
	list := els
	if matched {
		in.mark(rec)
		list = then
		if len(then) == 0 {
			return true, nil
		}
	}
	if len(list) == 0 {
		return false, nil
	}
	all := true
	for _, inst := range list {
		ok, err := in.exec(ctx, inst, rec)
		if err != nil {
			return false, err
		}
		if !ok {
			all = false
		}
	}
	return all, nil
}

// testURLs fetches the $u URLs of the matching fields in order. The test
// passes at the first page that does not contain the phrase. A URL that
// cannot be fetched counts as failed.
func (in *Interpreter) testURLs(ctx context.Context, i *dsl.URLValidityTest, rec *marc.Record) bool {
	flog := in.log.With(
		zap.String("control_number", rec.ControlNumber()),
		zap.String("tcn", rec.TCN()))

	if in.rc.Fetcher == nil {
		flog.Warn("url test has no fetcher configured")
		return false
	}

	for _, c := range rec.Fields(i.Tag) {
		for _, u := range c.Subfields('u') {
			if strings.TrimSpace(u) == "" {
				continue
			}
			page, err := in.rc.Fetcher.Fetch(ctx, u)
			if err != nil {
				flog.Warn("url fetch failed", zap.String("url", u), zap.Error(err))
				continue
			}
			if !strings.Contains(page, i.Phrase) {
				in.mark(rec)
				return true
			}
			flog.Debug("url page contains phrase", zap.String("url", u), zap.String("phrase", i.Phrase))
		}
	}
	flog.Info("url test failed", zap.String("phrase", i.Phrase))
	return false
}

func decodeURLs(i *dsl.URLDecode, rec *marc.Record) bool {
	found, changed := rec.UpdateFields(i.Tag, func(c marc.Content) (marc.Content, bool) {
		return c.ReplaceSubfield(i.Subfield, decodeCompositeURL)
	})
	return found && changed > 0
}

// decodeCompositeURL percent-decodes a URL that may embed redirect URLs.
// Each "http" segment is decoded on its own so an undecodable segment is
// kept as is.
func decodeCompositeURL(s string) string {
	parts := strings.Split(s, "http")
	var b strings.Builder
	for n, p := range parts {
		seg := p
		if n > 0 {
			seg = "http" + p
		}
		if seg == "" {
			continue
		}
		if d, err := url.QueryUnescape(seg); err == nil {
			seg = d
		}
		b.WriteString(seg)
	}
	return b.String()
}
