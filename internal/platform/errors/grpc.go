package errors

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"github.com/louisbranch/assetflow/internal/platform/errors/i18n"
)

// HandleError turns err into a gRPC status error for the wire. Coded errors
// keep their internal message as the status message and gain ErrorInfo,
// a LocalizedMessage in locale (en-US when empty) and RetryInfo when
// retryable. Statuses pass through. Anything else becomes Internal.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	appErr, coded := asError(err)
	switch {
	case coded:
		catalog := i18n.GetCatalog(locale)
		return grpcStatus(appErr, catalog.Locale(), catalog.Format(string(appErr.Code), appErr.Metadata)).Err()
	case isStatus(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		return status.Error(codes.Internal, "an unexpected error occurred")
	}
}

func isStatus(err error) bool {
	_, ok := status.FromError(err)
	return ok
}

func grpcStatus(e *Error, locale, userMessage string) *status.Status {
	st := status.New(e.Code.GRPCCode(), e.Message)
	details := []protoadapt.MessageV1{
		&errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain, Metadata: e.Metadata},
		&errdetails.LocalizedMessage{Locale: locale, Message: userMessage},
	}
	if e.Retryable() {
		details = append(details, &errdetails.RetryInfo{})
	}
	detailed, err := st.WithDetails(details...)
	if err != nil {
		return st
	}
	return detailed
}
