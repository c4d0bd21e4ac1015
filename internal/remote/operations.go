package remote

import (
	"context"

	"github.com/bookyo/client/internal/errors"
	"github.com/bookyo/client/internal/models"
)

// GraphQL documents for the typed operations. Field selections mirror the
// backend schema; list operations return items plus a pagination token.

const getBookQuery = `query GetBook($id: ID!) {
  getBook(id: $id) { id title isbn thumbnail author { id name } }
}`

const getUserQuery = `query GetUser($email: String!) {
  getUser(email: $email) { email firstName lastName address phone }
}`

const listAuthorsQuery = `query ListAuthors($filter: ModelAuthorFilterInput, $limit: Int, $nextToken: String) {
  listAuthors(filter: $filter, limit: $limit, nextToken: $nextToken) {
    items { id name }
    nextToken
  }
}`

const createAuthorMutation = `mutation CreateAuthor($input: CreateAuthorInput!) {
  createAuthor(input: $input) { id name }
}`

const createBookMutation = `mutation CreateBook($input: CreateBookInput!) {
  createBook(input: $input) { id title isbn thumbnail }
}`

const createListingMutation = `mutation CreateListing($input: CreateListingInput!) {
  createListing(input: $input) { id bookId userId price status photos }
}`

const createNotificationMutation = `mutation CreateNotification($input: CreateNotificationInput!) {
  createNotification(input: $input) { id title body recipient read type }
}`

const listNotificationsQuery = `query ListNotifications($filter: ModelNotificationFilterInput, $limit: Int, $nextToken: String) {
  listNotifications(filter: $filter, limit: $limit, nextToken: $nextToken) {
    items { id title body recipient read type createdAt }
    nextToken
  }
}`

const updateNotificationMutation = `mutation UpdateNotification($input: UpdateNotificationInput!) {
  updateNotification(input: $input) { id read }
}`

const createBookWishlistMutation = `mutation CreateBookWishlist($input: CreateBookWishlistInput!) {
  createBookWishlist(input: $input) { id bookId listId }
}`

const listBookWishlistsQuery = `query ListBookWishlists($filter: ModelBookWishlistFilterInput, $limit: Int, $nextToken: String) {
  listBookWishlists(filter: $filter, limit: $limit, nextToken: $nextToken) {
    items { id bookId listId }
    nextToken
  }
}`

// GetBook fetches a book by id, with its author reference resolved.
func (c *Client) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var resp struct {
		GetBook *models.Book `json:"getBook"`
	}
	if err := c.Execute(ctx, getBookQuery, map[string]interface{}{"id": id}, &resp); err != nil {
		return nil, err
	}
	if resp.GetBook == nil {
		return nil, errors.New(errors.ErrNotFound, "book not found: "+id)
	}
	if resp.GetBook.Author != nil {
		resp.GetBook.AuthorID = resp.GetBook.Author.ID
	}
	return resp.GetBook, nil
}

// GetUser fetches a user by email (the User model's identifier).
func (c *Client) GetUser(ctx context.Context, email string) (*models.User, error) {
	var resp struct {
		GetUser *models.User `json:"getUser"`
	}
	if err := c.Execute(ctx, getUserQuery, map[string]interface{}{"email": email}, &resp); err != nil {
		return nil, err
	}
	if resp.GetUser == nil {
		return nil, errors.New(errors.ErrNotFound, "user not found: "+email)
	}
	return resp.GetUser, nil
}

// ListAuthors lists authors matching the filter.
func (c *Client) ListAuthors(ctx context.Context, filter Predicate, page Page) ([]models.Author, string, error) {
	vars := map[string]interface{}{}
	if filter != nil {
		vars["filter"] = filter
	}
	page.variables(vars)

	var resp struct {
		ListAuthors struct {
			Items     []models.Author `json:"items"`
			NextToken string          `json:"nextToken"`
		} `json:"listAuthors"`
	}
	if err := c.Execute(ctx, listAuthorsQuery, vars, &resp); err != nil {
		return nil, "", err
	}
	return resp.ListAuthors.Items, resp.ListAuthors.NextToken, nil
}

// ListAuthorsByName is the natural-key lookup used before author creation.
func (c *Client) ListAuthorsByName(ctx context.Context, name string) ([]models.Author, error) {
	authors, _, err := c.ListAuthors(ctx, Eq("name", name), Page{Limit: 10})
	return authors, err
}

// CreateAuthor creates a new author.
func (c *Client) CreateAuthor(ctx context.Context, author *models.Author) (*models.Author, error) {
	var resp struct {
		CreateAuthor *models.Author `json:"createAuthor"`
	}
	input := map[string]interface{}{"name": author.Name}
	if author.ID != "" {
		input["id"] = author.ID
	}
	err := c.Execute(ctx, createAuthorMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.CreateAuthor, nil
}

// CreateBook creates a new book record.
func (c *Client) CreateBook(ctx context.Context, book *models.Book) (*models.Book, error) {
	input := map[string]interface{}{
		"title":    book.Title,
		"isbn":     book.ISBN,
		"authorId": book.AuthorID,
	}
	if book.Thumbnail != "" {
		input["thumbnail"] = book.Thumbnail
	}
	if book.ID != "" {
		input["id"] = book.ID
	}

	var resp struct {
		CreateBook *models.Book `json:"createBook"`
	}
	err := c.Execute(ctx, createBookMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.CreateBook, nil
}

// CreateListing creates a new listing record. Photos must already exist in
// object storage: the record is created after its images, never before.
func (c *Client) CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	input := map[string]interface{}{
		"bookId": listing.BookID,
		"userId": listing.UserID,
		"price":  listing.Price,
		"status": listing.Status,
		"photos": listing.Photos,
	}
	if listing.ID != "" {
		input["id"] = listing.ID
	}

	var resp struct {
		CreateListing *models.Listing `json:"createListing"`
	}
	err := c.Execute(ctx, createListingMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.CreateListing, nil
}

// CreateNotification creates a notification record.
func (c *Client) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	input := map[string]interface{}{
		"title":     n.Title,
		"body":      n.Body,
		"recipient": n.Recipient,
		"read":      n.Read,
	}
	if n.Type != "" {
		input["type"] = n.Type
	}

	var resp struct {
		CreateNotification *models.Notification `json:"createNotification"`
	}
	err := c.Execute(ctx, createNotificationMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.CreateNotification, nil
}

// ListNotifications lists notifications addressed to the recipient id or
// broadcast to all users.
func (c *Client) ListNotifications(ctx context.Context, recipient string, page Page) ([]models.Notification, string, error) {
	vars := map[string]interface{}{
		"filter": Or(Eq("recipient", recipient), Eq("recipient", models.BroadcastRecipient)),
	}
	page.variables(vars)

	var resp struct {
		ListNotifications struct {
			Items     []models.Notification `json:"items"`
			NextToken string                `json:"nextToken"`
		} `json:"listNotifications"`
	}
	if err := c.Execute(ctx, listNotificationsQuery, vars, &resp); err != nil {
		return nil, "", err
	}
	return resp.ListNotifications.Items, resp.ListNotifications.NextToken, nil
}

// MarkNotificationRead flags a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	input := map[string]interface{}{"id": id, "read": true}
	return c.Execute(ctx, updateNotificationMutation, map[string]interface{}{"input": input}, nil)
}

// CreateBookWishlist adds a book to a wishlist.
func (c *Client) CreateBookWishlist(ctx context.Context, bookID, wishlistID string) (*models.BookWishlist, error) {
	input := map[string]interface{}{"bookId": bookID, "listId": wishlistID}

	var resp struct {
		CreateBookWishlist *models.BookWishlist `json:"createBookWishlist"`
	}
	err := c.Execute(ctx, createBookWishlistMutation, map[string]interface{}{"input": input}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.CreateBookWishlist, nil
}

// ListBookWishlists lists the membership rows of a wishlist.
func (c *Client) ListBookWishlists(ctx context.Context, wishlistID string, page Page) ([]models.BookWishlist, string, error) {
	vars := map[string]interface{}{"filter": Eq("listId", wishlistID)}
	page.variables(vars)

	var resp struct {
		ListBookWishlists struct {
			Items     []models.BookWishlist `json:"items"`
			NextToken string                `json:"nextToken"`
		} `json:"listBookWishlists"`
	}
	if err := c.Execute(ctx, listBookWishlistsQuery, vars, &resp); err != nil {
		return nil, "", err
	}
	return resp.ListBookWishlists.Items, resp.ListBookWishlists.NextToken, nil
}
