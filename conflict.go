/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dispatch

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/blnkfinance/dispatch/internal/apierror"
)

// HasConflict reports whether customerID already has a delivery on the
// calendar date of date. It is an exact date match and does not look at
// recurrence rules.
func (d *Dispatch) HasConflict(ctx context.Context, customerID string, date time.Time) (bool, error) {
	ctx, span := otel.Tracer("dispatch.sync").Start(ctx, "Checking delivery conflict")
	defer span.End()

	if strings.TrimSpace(customerID) == "" {
		return false, apierror.NewAPIError(apierror.ErrInvalidInput, "customer_id is required", nil)
	}

	exists, err := d.datasource.CustomerHasDelivery(ctx, customerID, date)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return exists, nil
}
