package ingest

import (
	"errors"
	"fmt"

	"github.com/solatis/stashkeeper/internal/types"
)

// errPluginAbsent marks identifiers from plugins that are not loaded.
// Such entries are skipped without a report entry.
var errPluginAbsent = errors.New("plugin not loaded")

// resolve parses and resolves an identifier. With placeable set the form must
// be an item or leveled list; otherwise, unless want is FormUnknown, it must
// be of kind want.
func (r *ruleReader) resolve(s string, placeable bool, want types.FormKind) (types.FormID, error) {
	ident, err := types.ParseIdentifier(s)
	if err != nil {
		return 0, err
	}

	var (
		id types.FormID
		ok bool
	)
	if ident.IsEditorID() {
		id, ok = r.forms.LookupEditorID(ident.EditorID)
	} else {
		if !r.forms.ModPresent(ident.Plugin) {
			return 0, errPluginAbsent
		}
		id, ok = r.forms.LookupForm(ident.LocalID, ident.Plugin)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrFormNotFound, ident)
	}

	kind := r.forms.FormKind(id)
	switch {
	case placeable && !kind.Placeable():
		return 0, fmt.Errorf("%w: %s is a %s", types.ErrFormNotFound, ident, kind)
	case !placeable && want != types.FormUnknown && kind != want:
		return 0, fmt.Errorf("%w: %s is a %s, want %s", types.ErrFormNotFound, ident, kind, want)
	}
	return id, nil
}

func (r *ruleReader) recordResolveError(err error, field string) {
	if errors.Is(err, types.ErrInvalidIdentifier) {
		r.report.BadFormat = append(r.report.BadFormat, field)
		return
	}
	r.report.MissingForm = append(r.report.MissingForm, field)
}
