package app

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"linkboard/api/internal/counter"
	"linkboard/api/internal/rbac"
	"linkboard/api/internal/sanitize"
	"linkboard/api/internal/store"
)

// Credentials is the resolved identity a mutation acts under. Role is
// already mapped to a system role; RoleInvalid means the external claim did
// not resolve.
type Credentials struct {
	ID        int64
	FirstName string
	LastName  string
	Role      rbac.Role
}

type CreateResourceInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type ChildInput struct {
	Contents string `json:"contents"`
}

const (
	nameMin     = 1
	lastNameMin = 2
	nameMax     = 40
	contentsMin = 1
	contentsMax = 200
	titleMax    = 200
	descMax     = 2000
)

type catalogStore interface {
	InsertResource(context.Context, store.Resource) error
	GetResource(context.Context, int64) (store.Resource, error)
	ListResources(context.Context) ([]store.Resource, error)
	DeleteResource(context.Context, int64) (bool, error)
	DeleteResourceChildren(context.Context, int64) error
	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, int64, int64) (store.Comment, error)
	DeleteComment(context.Context, int64, int64) (bool, error)
	InsertUpvote(context.Context, store.Upvote) error
	GetUpvote(context.Context, int64, int64) (store.Upvote, error)
	HasUpvote(context.Context, int64, int64) (bool, error)
	DeleteUpvote(context.Context, int64, int64) (bool, error)
	InsertFlag(context.Context, store.ReviewFlag) error
	GetFlag(context.Context, int64, int64) (store.ReviewFlag, error)
	UpdateFlagContents(context.Context, int64, int64, string) (bool, error)
	DeleteFlag(context.Context, int64, int64) (bool, error)
	Ping(ctx context.Context) error
}

// Service is the authorization-gated persistence layer. Every mutation runs
// the same pipeline: validate input, authorize, allocate an id, persist.
// The only synchronization point is the storage engine; the service itself
// holds no locks.
type Service struct {
	store catalogStore
	ids   counter.Allocator
	log   *logrus.Logger
}

func New(dataStore catalogStore, ids counter.Allocator) *Service {
	return &Service{
		store: dataStore,
		ids:   ids,
		log:   logrus.StandardLogger(),
	}
}

// authenticate rejects missing credentials and unresolved roles before any
// ownership logic runs.
func (s *Service) authenticate(actor *Credentials) *DomainError {
	if actor == nil {
		return unauthorized("credentials are required")
	}
	if actor.ID < 0 {
		return unauthorized("actor id must be non-negative")
	}
	if !actor.Role.Valid() {
		return unauthorized("role is not recognized")
	}
	return nil
}

// recordMeta builds the creator fields stored on every record, sanitizing
// the display names carried by the credentials.
func (s *Service) recordMeta(actor *Credentials) (store.RecordMeta, *DomainError) {
	firstName, ok := sanitize.CleanField(actor.FirstName, nameMin, nameMax)
	if !ok {
		return store.RecordMeta{}, invalidArgument("first name must be 1-40 characters")
	}
	lastName, ok := sanitize.CleanField(actor.LastName, lastNameMin, nameMax)
	if !ok {
		return store.RecordMeta{}, invalidArgument("last name must be 2-40 characters")
	}
	return store.RecordMeta{
		CreatorID:        actor.ID,
		CreatorFirstName: firstName,
		CreatorLastName:  lastName,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// allocateChild maps a missing counter document to NOT_FOUND; defaulting to
// id 0 here would collide with a legitimately allocated id.
func (s *Service) allocateChild(ctx context.Context, resourceID int64, kind counter.Kind) (int64, *DomainError) {
	id, err := s.ids.NextChildID(ctx, resourceID, kind)
	if errors.Is(err, counter.ErrNoCounter) {
		return 0, notFound("resource not found")
	}
	if err != nil {
		return 0, s.storeFault("allocate child id", err)
	}
	return id, nil
}

func (s *Service) storeFault(op string, err error) *DomainError {
	s.log.WithError(err).Error(op)
	return storeUnavailable(op + " failed")
}

func (s *Service) CreateResource(ctx context.Context, actor *Credentials, in CreateResourceInput) (int64, error) {
	if err := s.authenticate(actor); err != nil {
		return 0, err
	}
	if !rbac.Can(actor.Role, rbac.ActionCreateResource, 0, actor.ID) {
		return 0, forbidden("role may not create resources")
	}

	title, ok := sanitize.CleanField(in.Title, 1, titleMax)
	if !ok {
		return 0, invalidArgument("title must be 1-200 characters")
	}
	description, ok := sanitize.CleanField(in.Description, 1, descMax)
	if !ok {
		return 0, invalidArgument("description must be 1-2000 characters")
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return 0, invalidArgument("url must be absolute")
	}
	meta, derr := s.recordMeta(actor)
	if derr != nil {
		return 0, derr
	}

	id, err := s.ids.NextResourceID(ctx)
	if err != nil {
		return 0, s.storeFault("allocate resource id", err)
	}

	if err := s.store.InsertResource(ctx, store.Resource{
		ID:          id,
		Title:       title,
		Description: description,
		URL:         parsed.String(),
		RecordMeta:  meta,
	}); err != nil {
		return 0, s.storeFault("insert resource", err)
	}
	return id, nil
}

func (s *Service) ListResources(ctx context.Context, actor *Credentials) ([]store.Resource, error) {
	if err := s.authenticate(actor); err != nil {
		return nil, err
	}
	if !rbac.Can(actor.Role, rbac.ActionListResources, 0, actor.ID) {
		return nil, forbidden("role may not list resources")
	}
	items, err := s.store.ListResources(ctx)
	if err != nil {
		return nil, s.storeFault("list resources", err)
	}
	return items, nil
}

func (s *Service) GetResource(ctx context.Context, actor *Credentials, id int64) (store.Resource, error) {
	if err := s.authenticate(actor); err != nil {
		return store.Resource{}, err
	}
	if !rbac.Can(actor.Role, rbac.ActionListResources, 0, actor.ID) {
		return store.Resource{}, forbidden("role may not read resources")
	}
	item, err := s.store.GetResource(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Resource{}, notFound("resource not found")
	}
	if err != nil {
		return store.Resource{}, s.storeFault("get resource", err)
	}
	return item, nil
}

// DeleteResource removes a resource, its child records and its counter
// document. The child and counter cleanup is best effort in ordering: a
// failure after the resource row is gone can leave a counter document
// behind, which is unreachable (child allocation requires the row) and is
// reported rather than hidden.
func (s *Service) DeleteResource(ctx context.Context, actor *Credentials, id int64) error {
	if err := s.authenticate(actor); err != nil {
		return err
	}

	item, err := s.store.GetResource(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("resource not found")
	}
	if err != nil {
		return s.storeFault("get resource", err)
	}

	if !rbac.Can(actor.Role, rbac.ActionDeleteResource, item.CreatorID, actor.ID) {
		return forbidden("role may not delete this resource")
	}

	if err := s.store.DeleteResourceChildren(ctx, id); err != nil {
		return s.storeFault("delete resource children", err)
	}
	deleted, err := s.store.DeleteResource(ctx, id)
	if err != nil {
		return s.storeFault("delete resource", err)
	}
	if !deleted {
		// the resource vanished between lookup and delete
		return notFound("resource not found")
	}
	if err := s.ids.DropCounters(ctx, id); err != nil {
		return s.storeFault("drop resource counters", err)
	}
	return nil
}

func (s *Service) CreateComment(ctx context.Context, actor *Credentials, resourceID int64, in ChildInput) (int64, error) {
	if err := s.authenticate(actor); err != nil {
		return 0, err
	}
	if !rbac.Can(actor.Role, rbac.ActionCreateChild, 0, actor.ID) {
		return 0, forbidden("role may not comment")
	}
	contents, ok := sanitize.CleanField(in.Contents, contentsMin, contentsMax)
	if !ok {
		return 0, invalidArgument("contents must be 1-200 characters")
	}
	meta, derr := s.recordMeta(actor)
	if derr != nil {
		return 0, derr
	}

	id, derr := s.allocateChild(ctx, resourceID, counter.KindComment)
	if derr != nil {
		return 0, derr
	}

	if err := s.store.InsertComment(ctx, store.Comment{
		ID:         id,
		ResourceID: resourceID,
		Contents:   contents,
		RecordMeta: meta,
	}); err != nil {
		return 0, s.storeFault("insert comment", err)
	}
	return id, nil
}

func (s *Service) DeleteComment(ctx context.Context, actor *Credentials, resourceID, id int64) error {
	if err := s.authenticate(actor); err != nil {
		return err
	}

	item, err := s.store.GetComment(ctx, resourceID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("comment not found")
	}
	if err != nil {
		return s.storeFault("get comment", err)
	}

	if !rbac.Can(actor.Role, rbac.ActionDeleteChild, item.CreatorID, actor.ID) {
		return forbidden("role may not delete this comment")
	}

	deleted, err := s.store.DeleteComment(ctx, resourceID, id)
	if err != nil {
		return s.storeFault("delete comment", err)
	}
	if !deleted {
		return notFound("comment not found")
	}
	return nil
}

// CreateUpvote enforces one upvote per (resource, creator). The uniqueness
// lookup and the insert are not covered by a cross-step lock; a racing
// duplicate is accepted as a known exposure of the lookup-then-act design.
func (s *Service) CreateUpvote(ctx context.Context, actor *Credentials, resourceID int64) (int64, error) {
	if err := s.authenticate(actor); err != nil {
		return 0, err
	}
	if !rbac.Can(actor.Role, rbac.ActionCreateChild, 0, actor.ID) {
		return 0, forbidden("role may not upvote")
	}
	meta, derr := s.recordMeta(actor)
	if derr != nil {
		return 0, derr
	}

	has, err := s.store.HasUpvote(ctx, resourceID, actor.ID)
	if err != nil {
		return 0, s.storeFault("check upvote", err)
	}
	if has {
		return 0, alreadyExists("resource already upvoted by this user")
	}

	id, derr := s.allocateChild(ctx, resourceID, counter.KindUpvote)
	if derr != nil {
		return 0, derr
	}

	if err := s.store.InsertUpvote(ctx, store.Upvote{
		ID:         id,
		ResourceID: resourceID,
		RecordMeta: meta,
	}); err != nil {
		return 0, s.storeFault("insert upvote", err)
	}
	return id, nil
}

func (s *Service) DeleteUpvote(ctx context.Context, actor *Credentials, resourceID, id int64) error {
	if err := s.authenticate(actor); err != nil {
		return err
	}

	item, err := s.store.GetUpvote(ctx, resourceID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("upvote not found")
	}
	if err != nil {
		return s.storeFault("get upvote", err)
	}

	if !rbac.Can(actor.Role, rbac.ActionDeleteChild, item.CreatorID, actor.ID) {
		return forbidden("role may not remove this upvote")
	}

	deleted, err := s.store.DeleteUpvote(ctx, resourceID, id)
	if err != nil {
		return s.storeFault("delete upvote", err)
	}
	if !deleted {
		return notFound("upvote not found")
	}
	return nil
}

func (s *Service) CreateFlag(ctx context.Context, actor *Credentials, resourceID int64, in ChildInput) (int64, error) {
	if err := s.authenticate(actor); err != nil {
		return 0, err
	}
	if !rbac.Can(actor.Role, rbac.ActionCreateChild, 0, actor.ID) {
		return 0, forbidden("role may not flag resources")
	}
	contents, ok := sanitize.CleanField(in.Contents, contentsMin, contentsMax)
	if !ok {
		return 0, invalidArgument("contents must be 1-200 characters")
	}
	meta, derr := s.recordMeta(actor)
	if derr != nil {
		return 0, derr
	}

	id, derr := s.allocateChild(ctx, resourceID, counter.KindFlag)
	if derr != nil {
		return 0, derr
	}

	if err := s.store.InsertFlag(ctx, store.ReviewFlag{
		ID:         id,
		ResourceID: resourceID,
		Contents:   contents,
		RecordMeta: meta,
	}); err != nil {
		return 0, s.storeFault("insert flag", err)
	}
	return id, nil
}

// EditFlag updates a flag in place. Last write wins between two concurrent
// edits; the zero-match check only protects against the flag vanishing.
func (s *Service) EditFlag(ctx context.Context, actor *Credentials, resourceID, id int64, in ChildInput) error {
	if err := s.authenticate(actor); err != nil {
		return err
	}

	item, err := s.store.GetFlag(ctx, resourceID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("flag not found")
	}
	if err != nil {
		return s.storeFault("get flag", err)
	}

	if !rbac.Can(actor.Role, rbac.ActionEditChild, item.CreatorID, actor.ID) {
		return forbidden("role may not edit this flag")
	}

	contents, ok := sanitize.CleanField(in.Contents, contentsMin, contentsMax)
	if !ok {
		return invalidArgument("contents must be 1-200 characters")
	}

	updated, err := s.store.UpdateFlagContents(ctx, resourceID, id, contents)
	if err != nil {
		return s.storeFault("update flag", err)
	}
	if !updated {
		return notFound("flag not found")
	}
	return nil
}

func (s *Service) DeleteFlag(ctx context.Context, actor *Credentials, resourceID, id int64) error {
	if err := s.authenticate(actor); err != nil {
		return err
	}

	item, err := s.store.GetFlag(ctx, resourceID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("flag not found")
	}
	if err != nil {
		return s.storeFault("get flag", err)
	}

	if !rbac.Can(actor.Role, rbac.ActionDeleteChild, item.CreatorID, actor.ID) {
		return forbidden("role may not delete this flag")
	}

	deleted, err := s.store.DeleteFlag(ctx, resourceID, id)
	if err != nil {
		return s.storeFault("delete flag", err)
	}
	if !deleted {
		return notFound("flag not found")
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
