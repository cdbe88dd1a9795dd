/*
Copyright 2025 Codenotary Inc. All rights reserved.

SPDX-License-Identifier: BUSL-1.1
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://mariadb.com/bsl11/

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package catalog

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/codenotary/colcat/pkg/lock"
	"github.com/codenotary/colcat/pkg/rbac"
)

const sqlSelectLinks = `SELECT linkid, userid, link, view_state,
	strftime('%Y-%m-%dT%H:%M:%SZ', update_time), view_metadata
	FROM links`

func scanDashboard(scan func(dest ...interface{}) error) (*FrontendViewDescriptor, error) {
	var (
		vd                                  FrontendViewDescriptor
		state, imageHash, updated, metadata sql.NullString
	)

	err := scan(&vd.ViewID, &state, &vd.ViewName, &imageHash, &updated, &vd.UserID, &metadata)
	if err != nil {
		return nil, err
	}

	vd.ViewState = state.String
	vd.ImageHash = imageHash.String
	vd.UpdateTime = updated.String
	vd.ViewMetadata = metadata.String

	return &vd, nil
}

func scanLink(scan func(dest ...interface{}) error) (*LinkDescriptor, error) {
	var (
		ld                       LinkDescriptor
		state, updated, metadata sql.NullString
	)

	err := scan(&ld.LinkID, &ld.UserID, &ld.Link, &state, &updated, &metadata)
	if err != nil {
		return nil, err
	}

	ld.ViewState = state.String
	ld.UpdateTime = updated.String
	ld.ViewMetadata = metadata.String

	return &ld, nil
}

// CreateDashboard stores a dashboard, replacing the one of the same user
// and name if any. vd gets the assigned id and update time.
func (c *Catalog) CreateDashboard(ctx context.Context, vd *FrontendViewDescriptor) (int32, error) {
	if vd.ViewName == "" {
		return 0, fmt.Errorf("%w: empty dashboard name", ErrIllegalArguments)
	}

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	var stored *FrontendViewDescriptor

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		n, err := c.store.Count(ctx, "SELECT count(*) FROM dashboards WHERE name = ? AND userid = ?", vd.ViewName, vd.UserID)
		if err != nil {
			return err
		}

		if n == 0 {
			_, err = c.store.Exec(ctx, `INSERT INTO dashboards (name, state, image_hash, metadata, update_time, userid)
				VALUES (?, ?, ?, ?, datetime('now'), ?)`,
				vd.ViewName, vd.ViewState, vd.ImageHash, vd.ViewMetadata, vd.UserID)
		} else {
			_, err = c.store.Exec(ctx, `UPDATE dashboards SET state = ?, image_hash = ?, metadata = ?,
				update_time = datetime('now') WHERE name = ? AND userid = ?`,
				vd.ViewState, vd.ImageHash, vd.ViewMetadata, vd.ViewName, vd.UserID)
		}
		if err != nil {
			return err
		}

		stored, err = scanDashboard(c.store.QueryRow(ctx, sqlSelectDashboards+" WHERE name = ? AND userid = ?",
			vd.ViewName, vd.UserID).Scan)
		return err
	})
	if err != nil {
		return 0, err
	}

	vd.ViewID = stored.ViewID
	vd.UpdateTime = stored.UpdateTime

	c.dashboards[dashboardKey(stored.UserID, stored.ViewName)] = stored

	metricsDDL.WithLabelValues(c.db.DBName, "create_dashboard").Inc()

	return stored.ViewID, nil
}

// ReplaceDashboard overwrites the dashboard with id vd.ViewID.
func (c *Catalog) ReplaceDashboard(ctx context.Context, vd *FrontendViewDescriptor) error {
	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	old := c.dashboardByIDLocked(vd.ViewID)
	if old == nil {
		return fmt.Errorf("%w: id %d", ErrDashboardNotFound, vd.ViewID)
	}

	if other, ok := c.dashboards[dashboardKey(vd.UserID, vd.ViewName)]; ok && other != old {
		return fmt.Errorf("%w: '%s' of user %d", ErrDashboardExists, vd.ViewName, vd.UserID)
	}

	var stored *FrontendViewDescriptor

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		_, err := c.store.Exec(ctx, `UPDATE dashboards SET name = ?, userid = ?, state = ?, image_hash = ?,
			metadata = ?, update_time = datetime('now') WHERE id = ?`,
			vd.ViewName, vd.UserID, vd.ViewState, vd.ImageHash, vd.ViewMetadata, vd.ViewID)
		if err != nil {
			return err
		}

		stored, err = scanDashboard(c.store.QueryRow(ctx, sqlSelectDashboards+" WHERE id = ?", vd.ViewID).Scan)
		return err
	})
	if err != nil {
		return err
	}

	delete(c.dashboards, dashboardKey(old.UserID, old.ViewName))
	c.dashboards[dashboardKey(stored.UserID, stored.ViewName)] = stored

	vd.UpdateTime = stored.UpdateTime

	return nil
}

func (c *Catalog) dashboardByIDLocked(id int32) *FrontendViewDescriptor {
	for _, vd := range c.dashboards {
		if vd.ViewID == id {
			return vd
		}
	}
	return nil
}

func (c *Catalog) GetMetadataForDashboard(ctx context.Context, userID int32, name string) (*FrontendViewDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	vd, ok := c.dashboards[dashboardKey(userID, name)]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' of user %d", ErrDashboardNotFound, name, userID)
	}

	return vd, nil
}

func (c *Catalog) GetMetadataForDashboardByID(ctx context.Context, id int32) (*FrontendViewDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	vd := c.dashboardByIDLocked(id)
	if vd == nil {
		return nil, fmt.Errorf("%w: id %d", ErrDashboardNotFound, id)
	}

	return vd, nil
}

// GetAllDashboardsMetadata returns every dashboard ordered by id.
func (c *Catalog) GetAllDashboardsMetadata(ctx context.Context) []*FrontendViewDescriptor {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	return c.allDashboards()
}

// DeleteDashboard revokes every privilege granted on a dashboard and
// removes it.
func (c *Catalog) DeleteDashboard(ctx context.Context, id int32) error {
	ctx, sg := lock.WriteStore(ctx, c.sys)
	defer sg.Release()

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	vd := c.dashboardByIDLocked(id)
	if vd == nil {
		return fmt.Errorf("%w: id %d", ErrDashboardNotFound, id)
	}

	if c.sys.opts.privilegesOn {
		obj := rbac.NewDBObjectWithKey(vd.ViewName, rbac.DBObjectKey{
			PermissionType: rbac.DashboardDBObjectType,
			DBID:           c.db.DBID,
			ObjectID:       id,
		}, rbac.NoPrivileges)

		err := c.sys.rbacTx(ctx, func(ctx context.Context) error {
			return c.sys.revokeFromAllRoles(ctx, obj)
		})
		if err != nil {
			return err
		}
	}

	_, err := c.store.Exec(ctx, "DELETE FROM dashboards WHERE id = ?", id)
	if err != nil {
		return err
	}

	delete(c.dashboards, dashboardKey(vd.UserID, vd.ViewName))

	metricsDDL.WithLabelValues(c.db.DBName, "delete_dashboard").Inc()

	return nil
}

// Links

func linkFor(ld *LinkDescriptor) string {
	sum := sha1.Sum([]byte(ld.ViewState + ld.ViewMetadata + itoa(ld.UserID)))
	return hex.EncodeToString(sum[:])[:8]
}

// CreateLink stores a short link to a dashboard state and returns it. The
// link is derived from the content, so storing the same state twice only
// refreshes its update time.
func (c *Catalog) CreateLink(ctx context.Context, ld *LinkDescriptor) (string, error) {
	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	ld.Link = linkFor(ld)

	var stored *LinkDescriptor

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		n, err := c.store.Count(ctx, "SELECT count(*) FROM links WHERE link = ?", ld.Link)
		if err != nil {
			return err
		}

		if n == 0 {
			_, err = c.store.Exec(ctx, `INSERT INTO links (userid, link, view_state, view_metadata, update_time)
				VALUES (?, ?, ?, ?, datetime('now'))`,
				ld.UserID, ld.Link, ld.ViewState, ld.ViewMetadata)
		} else {
			_, err = c.store.Exec(ctx, "UPDATE links SET update_time = datetime('now') WHERE link = ?", ld.Link)
		}
		if err != nil {
			return err
		}

		stored, err = scanLink(c.store.QueryRow(ctx, sqlSelectLinks+" WHERE link = ?", ld.Link).Scan)
		return err
	})
	if err != nil {
		return "", err
	}

	ld.LinkID = stored.LinkID
	ld.UpdateTime = stored.UpdateTime

	c.linkByLink[stored.Link] = stored
	c.linkByID[stored.LinkID] = stored

	return stored.Link, nil
}

func (c *Catalog) GetMetadataForLink(ctx context.Context, link string) (*LinkDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	ld, ok := c.linkByLink[link]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrLinkNotFound, link)
	}

	return ld, nil
}

func (c *Catalog) GetMetadataForLinkByID(ctx context.Context, id int32) (*LinkDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	ld, ok := c.linkByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrLinkNotFound, id)
	}

	return ld, nil
}
