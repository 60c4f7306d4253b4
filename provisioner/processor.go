// Package provisioner implements the SCIM request processor: the state
// machine that turns a decoded SCIM request into a directory mutation plus
// a cache update, in the order that keeps a crash recoverable.
package provisioner

import (
	"context"
	"encoding/json"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/nordforge/scim-ad-bridge/directory"
	"github.com/nordforge/scim-ad-bridge/scim"
	"github.com/nordforge/scim-ad-bridge/store"
)

// CacheStore is the subset of store.CacheStore the processor drives. An
// interface here, rather than a concrete *store.CacheStore, is the seam
// tests substitute an in-memory fake for.
type CacheStore interface {
	FindByID(ctx context.Context, id string) (store.Row, error)
	FindBySam(ctx context.Context, sam string) (store.Row, error)
	Insert(ctx context.Context, row store.Row) (store.Row, error)
	Update(ctx context.Context, row store.Row) (store.Row, error)
	Delete(ctx context.Context, id string) error
	Page(ctx context.Context, predicate *scim.Predicate, offset, limit int) ([]store.Row, int, error)
}

// Directory is the subset of directory.Executor the processor drives.
type Directory interface {
	Create(ctx context.Context, params directory.Params, scimUserID string) directory.Result
	Update(ctx context.Context, identity string, params directory.Params, scimUserID string) directory.Result
	Delete(ctx context.Context, identity string, scimUserID string) directory.Result
	Read(ctx context.Context, identity string, scimUserID string) map[string]any
}

// Processor orchestrates list/get/create/replace/patch/delete.
type Processor struct {
	Cache     CacheStore
	Directory Directory
	BaseOU    string
	BaseURL   string
	Logger    kitlog.Logger
}

// Response is what every processor operation returns: an HTTP status and
// the SCIM envelope body to serialize. Location is set only by Create.
type Response struct {
	Status   int
	Body     scim.Resource
	Location string
}

func errorResponse(err *scim.Error) Response {
	return Response{Status: err.Status, Body: scim.FormatError(err)}
}

// List implements §4.G list: clamp paging, parse filter, page the cache,
// format the results.
func (p *Processor) List(ctx context.Context, filter string, startIndex, count int) Response {
	if startIndex < 1 {
		startIndex = 1
	}
	if count < 1 {
		count = 1
	}
	if count > 200 {
		count = 200
	}

	predicate, _ := scim.ParseFilter(filter)

	rows, total, err := p.Cache.Page(ctx, predicate, startIndex-1, count)
	if err != nil {
		p.logError("list cache page", err)
		return errorResponse(scim.ErrInternal("cache read failed"))
	}

	resources := make([]scim.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, formatRow(row, p.BaseURL))
	}

	body := scim.FormatList(resources, total, startIndex, len(resources))
	return Response{Status: 200, Body: body}
}

// Get implements §4.G get.
func (p *Processor) Get(ctx context.Context, id string) Response {
	row, err := p.Cache.FindByID(ctx, id)
	if err == store.ErrNotFound {
		return errorResponse(scim.ErrNoTarget("no such user"))
	}
	if err != nil {
		p.logError("get cache lookup", err)
		return errorResponse(scim.ErrInternal("cache read failed"))
	}
	return Response{Status: 200, Body: formatRow(row, p.BaseURL)}
}

// Create implements §4.G create. The cache row is written only after the
// directory call succeeds, so a failed create leaves no orphan row.
func (p *Processor) Create(ctx context.Context, user scim.Resource) Response {
	userName, ok := scim.GetString(user, "userName")
	if !ok || userName == "" {
		return errorResponse(scim.ErrInvalidValue("userName is required"))
	}

	sam := computeSam(userName)

	if _, err := p.Cache.FindBySam(ctx, sam); err == nil {
		return errorResponse(scim.ErrUniqueness("a user with that sAMAccountName already exists"))
	} else if err != store.ErrNotFound {
		p.logError("create uniqueness check", err)
		return errorResponse(scim.ErrInternal("cache read failed"))
	}

	id, ok := scim.GetString(user, "externalId")
	if !ok || id == "" {
		id = uuid.NewString()
	}

	params := directory.ScimToParams(user, p.BaseOU)
	result := p.Directory.Create(ctx, params, id)
	if !result.Success() {
		classified := directory.Classify(result.Stderr)
		level.Error(p.Logger).Log("msg", "directory create failed", "id", id, "stderr", result.Stderr)
		return errorResponse(scim.NewError(classified.Status, classified.ScimType, classified.Detail))
	}

	guid, _ := result.ObjectGUID()

	view := scim.Clone(user)
	view["id"] = id
	viewJSON, err := json.Marshal(view)
	if err != nil {
		return errorResponse(scim.ErrInternal("failed to serialize scim view"))
	}

	var guidPtr *string
	if guid != "" {
		guidPtr = &guid
	}
	row := store.Row{
		ID:             id,
		ADObjectGUID:   guidPtr,
		SamAccountName: &sam,
		ScimResource:   viewJSON,
		SyncStatus:     store.StatusSynced,
	}

	row, err = p.Cache.Insert(ctx, row)
	if err == store.ErrDuplicate {
		return errorResponse(scim.ErrUniqueness("a user with that sAMAccountName already exists"))
	}
	if err != nil {
		p.logError("create cache insert", err)
		return errorResponse(scim.ErrInternal("cache write failed"))
	}

	identity := firstNonEmpty(guid, sam)
	p.refresh(ctx, &row, identity)

	return Response{
		Status:   201,
		Body:     formatRow(row, p.BaseURL),
		Location: p.BaseURL + "/scim/v2/Users/" + id,
	}
}

// Replace implements §4.G replace (PUT). The cache is written pending
// before the directory call, so a crash mid-request leaves a recoverable
// row instead of silently losing the write.
func (p *Processor) Replace(ctx context.Context, id string, user scim.Resource) Response {
	row, err := p.Cache.FindByID(ctx, id)
	if err == store.ErrNotFound {
		return errorResponse(scim.ErrNoTarget("no such user"))
	}
	if err != nil {
		p.logError("replace cache lookup", err)
		return errorResponse(scim.ErrInternal("cache read failed"))
	}

	view := scim.Clone(user)
	view["id"] = id
	viewJSON, err := json.Marshal(view)
	if err != nil {
		return errorResponse(scim.ErrInternal("failed to serialize scim view"))
	}
	row.ScimResource = viewJSON
	row.SyncStatus = store.StatusPending
	row, err = p.Cache.Update(ctx, row)
	if err != nil {
		p.logError("replace cache pending write", err)
		return errorResponse(scim.ErrInternal("cache write failed"))
	}

	identity := identityOf(row)
	if identity == "" {
		return errorResponse(scim.ErrInternal("row has neither ad_object_guid nor sam_account_name"))
	}

	params := mapForUpdate(view, p.BaseOU)
	result := p.Directory.Update(ctx, identity, params, id)
	if !result.Success() {
		return p.markError(ctx, row, result.Stderr)
	}

	row.SyncStatus = store.StatusSynced
	row.LastError = nil
	row, err = p.Cache.Update(ctx, row)
	if err != nil {
		p.logError("replace cache commit", err)
		return errorResponse(scim.ErrInternal("cache write failed"))
	}

	p.refresh(ctx, &row, identity)
	return Response{Status: 200, Body: formatRow(row, p.BaseURL)}
}

// Patch implements §4.G patch. Only the changed top-level fields are
// mapped to directory params; if nothing maps to a recognized parameter,
// the directory call is skipped entirely.
func (p *Processor) Patch(ctx context.Context, id string, patch scim.PatchRequest) Response {
	if len(patch.Operations) == 0 {
		return errorResponse(scim.ErrInvalidValue("Operations must be a non-empty list"))
	}

	row, err := p.Cache.FindByID(ctx, id)
	if err == store.ErrNotFound {
		return errorResponse(scim.ErrNoTarget("no such user"))
	}
	if err != nil {
		p.logError("patch cache lookup", err)
		return errorResponse(scim.ErrInternal("cache read failed"))
	}

	var view scim.Resource
	if err := json.Unmarshal(row.ScimResource, &view); err != nil {
		p.logError("patch unmarshal stored view", err)
		return errorResponse(scim.ErrInternal("stored scim view is corrupt"))
	}

	newView, changed := scim.ApplyPatch(view, patch.Operations)
	newView["id"] = id

	viewJSON, err := json.Marshal(newView)
	if err != nil {
		return errorResponse(scim.ErrInternal("failed to serialize scim view"))
	}
	row.ScimResource = viewJSON
	row.SyncStatus = store.StatusPending
	row, err = p.Cache.Update(ctx, row)
	if err != nil {
		p.logError("patch cache pending write", err)
		return errorResponse(scim.ErrInternal("cache write failed"))
	}

	params := mapForUpdate(scim.Resource(changed), "")
	if len(params) == 0 {
		row.SyncStatus = store.StatusSynced
		row, err = p.Cache.Update(ctx, row)
		if err != nil {
			p.logError("patch cache commit", err)
			return errorResponse(scim.ErrInternal("cache write failed"))
		}
		return Response{Status: 200, Body: formatRow(row, p.BaseURL)}
	}

	identity := identityOf(row)
	if identity == "" {
		return errorResponse(scim.ErrInternal("row has neither ad_object_guid nor sam_account_name"))
	}

	result := p.Directory.Update(ctx, identity, params, id)
	if !result.Success() {
		return p.markError(ctx, row, result.Stderr)
	}

	row.SyncStatus = store.StatusSynced
	row.LastError = nil
	row, err = p.Cache.Update(ctx, row)
	if err != nil {
		p.logError("patch cache commit", err)
		return errorResponse(scim.ErrInternal("cache write failed"))
	}

	p.refresh(ctx, &row, identity)
	return Response{Status: 200, Body: formatRow(row, p.BaseURL)}
}

// Delete implements §4.G delete. The cache row is removed only after the
// directory call succeeds (or the row already has no known identity), so a
// failed delete never loses the mapping.
func (p *Processor) Delete(ctx context.Context, id string) Response {
	row, err := p.Cache.FindByID(ctx, id)
	if err == store.ErrNotFound {
		return errorResponse(scim.ErrNoTarget("no such user"))
	}
	if err != nil {
		p.logError("delete cache lookup", err)
		return errorResponse(scim.ErrInternal("cache read failed"))
	}

	identity := identityOf(row)
	if identity != "" {
		result := p.Directory.Delete(ctx, identity, id)
		if !result.Success() && !directory.IsAlreadyGone(result.Stderr) {
			classified := directory.Classify(result.Stderr)
			return errorResponse(scim.NewError(classified.Status, classified.ScimType, classified.Detail))
		}
	}

	if err := p.Cache.Delete(ctx, id); err != nil {
		p.logError("delete cache row", err)
		return errorResponse(scim.ErrInternal("cache write failed"))
	}

	return Response{Status: 204}
}

// markError records a directory failure onto row and returns the
// classified SCIM error.
func (p *Processor) markError(ctx context.Context, row store.Row, stderr string) Response {
	classified := directory.Classify(stderr)
	truncated := store.Truncate(stderr, store.MaxLastErrorLen)
	row.SyncStatus = store.StatusError
	row.LastError = &truncated
	if _, err := p.Cache.Update(ctx, row); err != nil {
		p.logError("mark error cache write", err)
	}
	return errorResponse(scim.NewError(classified.Status, classified.ScimType, classified.Detail))
}

// refresh best-effort hydrates ad_resource from a fresh directory read.
// Failures are logged and ignored; they never change the response already
// decided by the caller.
func (p *Processor) refresh(ctx context.Context, row *store.Row, identity string) {
	adUser := p.Directory.Read(ctx, identity, row.ID)
	if adUser == nil {
		return
	}
	adJSON, err := json.Marshal(adUser)
	if err != nil {
		p.logError("refresh marshal ad view", err)
		return
	}
	row.AdResource = adJSON
	updated, err := p.Cache.Update(ctx, *row)
	if err != nil {
		p.logError("refresh cache write", err)
		return
	}
	*row = updated
}

func (p *Processor) logError(msg string, err error) {
	if p.Logger == nil {
		return
	}
	level.Error(p.Logger).Log("msg", msg, "err", err)
}

// formatRow decodes a row's stored SCIM view and formats it through §4.H.
func formatRow(row store.Row, baseURL string) scim.Resource {
	var view scim.Resource
	if err := json.Unmarshal(row.ScimResource, &view); err != nil {
		view = scim.Resource{}
	}
	fallback := scim.RowFallback{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.SamAccountName != nil {
		fallback.SamAccountName = *row.SamAccountName
	}
	return scim.FormatUser(view, fallback, baseURL)
}

// identityOf picks the AD object GUID when known, else the sAMAccountName,
// else "" (the invariant-violation case).
func identityOf(row store.Row) string {
	if row.ADObjectGUID != nil && *row.ADObjectGUID != "" {
		return *row.ADObjectGUID
	}
	if row.SamAccountName != nil && *row.SamAccountName != "" {
		return *row.SamAccountName
	}
	return ""
}

// mapForUpdate maps a (possibly partial) SCIM resource to directory update
// params, stripping Name and Path — the update tool does not accept
// either, per spec.md §4.G replace/patch.
func mapForUpdate(view scim.Resource, baseOu string) directory.Params {
	params := directory.ScimToParams(view, baseOu)
	delete(params, directory.Name)
	delete(params, directory.Path)
	return params
}

// computeSam derives sam_account_name from userName, the same transform
// scim.SamAccountNameFor applies to a userName filter value so the two stay
// in sync (spec.md invariant 2).
func computeSam(userName string) string {
	return scim.SamAccountNameFor(userName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
