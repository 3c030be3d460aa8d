package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/pkg/db/pagination"
)

type ListClientRequest struct {
	PageToken string
	PageSize  int32
	Name      string
}

type ListClientFilter struct {
	Name    string
	AfterID snowflake.ID
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type Service interface {
	List(context.Context, ListClientRequest) (ListClientResponse, error)
	GetByID(context.Context, string) (Client, error)
}

var (
	ErrInvalidBusiness  = errors.New("invalid_business")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("client_not_found")
)
