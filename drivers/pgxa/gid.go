package pgxa

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/timzifer/xarecover/xa"
)

// encodeGID renders an xid as a PostgreSQL prepared transaction identifier:
// <formatID>_<base64 gtrid>_<base64 bqual>.
func encodeGID(xid xa.Xid) string {
	return strconv.FormatInt(int64(xid.FormatID), 10) + "_" +
		base64.StdEncoding.EncodeToString(xid.GlobalTransactionID) + "_" +
		base64.StdEncoding.EncodeToString(xid.BranchQualifier)
}

// decodeGID parses a gid produced by encodeGID. Prepared transactions created
// by other tools fail to decode and are not ours to recover.
func decodeGID(gid string) (xa.Xid, error) {
	parts := strings.Split(gid, "_")
	if len(parts) != 3 {
		return xa.Xid{}, fmt.Errorf("pgxa: gid %q: unexpected format", gid)
	}
	formatID, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return xa.Xid{}, fmt.Errorf("pgxa: gid %q: format id: %w", gid, err)
	}
	gtrid, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return xa.Xid{}, fmt.Errorf("pgxa: gid %q: global transaction id: %w", gid, err)
	}
	bqual, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return xa.Xid{}, fmt.Errorf("pgxa: gid %q: branch qualifier: %w", gid, err)
	}
	xid := xa.Xid{FormatID: int32(formatID), GlobalTransactionID: gtrid, BranchQualifier: bqual}
	if err := xid.Validate(); err != nil {
		return xa.Xid{}, err
	}
	return xid, nil
}

// quoteLiteral quotes s as a SQL string literal. PREPARE TRANSACTION and
// friends do not accept bind parameters.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
