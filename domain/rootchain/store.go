package rootchain

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/merkle"
	"github.com/plasmalabs/rootchaind/domain/utxopos"
	"github.com/plasmalabs/rootchaind/infrastructure/db/database"
)

var (
	blocksBucket   = database.MakeBucket([]byte("blocks"))
	depositsBucket = database.MakeBucket([]byte("deposits"))
	exitsBucket    = database.MakeBucket([]byte("exits"))
	balancesBucket = database.MakeBucket([]byte("balances"))
	metaBucket     = database.MakeBucket([]byte("meta"))

	metaStateKey = metaBucket.Key([]byte("state"))
)

// Store persists the ledger's state in a database, one entry per block,
// deposit, exit record and balance, plus a single scalar-state entry. Each
// committed delta is written in one database transaction, so the store
// always holds a consistent snapshot of the ledger the way it was after
// some operation.
type Store struct {
	db database.Database
}

// NewStore returns a Store over the given database.
func NewStore(db database.Database) *Store {
	return &Store{db: db}
}

// write persists an operation's delta atomically.
func (s *Store) write(d *delta) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = dbTx.RollbackUnlessClosed()
	}()

	for blockNumber, block := range d.blocks {
		err = dbTx.Put(blocksBucket.Key(serializeUint64(blockNumber)),
			serializeBlock(block))
		if err != nil {
			return err
		}
	}
	for blockNumber, deposit := range d.deposits {
		err = dbTx.Put(depositsBucket.Key(serializeUint64(blockNumber)),
			serializeDeposit(deposit))
		if err != nil {
			return err
		}
	}
	for pos, record := range d.exitPuts {
		err = dbTx.Put(exitsBucket.Key(serializeUint64(uint64(pos))),
			serializeExit(record))
		if err != nil {
			return err
		}
	}
	for _, pos := range d.exitDeletes {
		err = dbTx.Delete(exitsBucket.Key(serializeUint64(uint64(pos))))
		if err != nil {
			return err
		}
	}
	for owner, balance := range d.balances {
		err = dbTx.Put(balancesBucket.Key(owner.Bytes()),
			serializeUint64(balance))
		if err != nil {
			return err
		}
	}
	err = dbTx.Put(metaStateKey, serializeMetaState(&d.meta))
	if err != nil {
		return err
	}

	return dbTx.Commit()
}

// restore loads the persisted state into a freshly constructed ledger. A
// store with no scalar-state entry is empty and leaves the ledger at its
// genesis values.
func (s *Store) restore(l *Ledger) error {
	metaBytes, err := s.db.Get(metaStateKey)
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	meta, err := deserializeMetaState(metaBytes)
	if err != nil {
		return err
	}
	l.currentChildBlock = meta.currentChildBlock
	l.currentDepositIndex = meta.currentDepositIndex
	l.escrow = meta.escrow

	err = s.forEach(blocksBucket, func(suffix, value []byte) error {
		blockNumber, err := deserializeUint64(suffix)
		if err != nil {
			return err
		}
		block, err := deserializeBlock(value)
		if err != nil {
			return err
		}
		l.blocks[blockNumber] = block
		return nil
	})
	if err != nil {
		return err
	}

	err = s.forEach(depositsBucket, func(suffix, value []byte) error {
		blockNumber, err := deserializeUint64(suffix)
		if err != nil {
			return err
		}
		deposit, err := deserializeDeposit(value)
		if err != nil {
			return err
		}
		l.deposits[blockNumber] = deposit
		return nil
	})
	if err != nil {
		return err
	}

	err = s.forEach(exitsBucket, func(suffix, value []byte) error {
		pos, err := deserializeUint64(suffix)
		if err != nil {
			return err
		}
		record, err := deserializeExit(value)
		if err != nil {
			return err
		}
		record.Position = utxopos.Position(pos)
		l.exits[record.Position] = record
		return nil
	})
	if err != nil {
		return err
	}

	return s.forEach(balancesBucket, func(suffix, value []byte) error {
		if len(suffix) != common.AddressLength {
			return errors.Errorf("balance key is %d bytes, want %d",
				len(suffix), common.AddressLength)
		}
		balance, err := deserializeUint64(value)
		if err != nil {
			return err
		}
		l.balances[common.BytesToAddress(suffix)] = balance
		return nil
	})
}

// forEach runs fn over every entry of the given bucket.
func (s *Store) forEach(bucket *database.Bucket, fn func(suffix, value []byte) error) error {
	cursor, err := s.db.Cursor(bucket)
	if err != nil {
		return err
	}
	defer func() {
		_ = cursor.Close()
	}()

	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		value, err := cursor.Value()
		if err != nil {
			return err
		}
		err = fn(key.Suffix(), value)
		if err != nil {
			return err
		}
	}
	return nil
}

const (
	serializedBlockLength     = merkle.HashSize + 8
	serializedDepositLength   = 2*common.AddressLength + 8
	serializedExitLength      = 2*common.AddressLength + 8 + 8 + 1
	serializedMetaStateLength = 3 * 8
)

func serializeUint64(value uint64) []byte {
	serialized := make([]byte, 8)
	binary.BigEndian.PutUint64(serialized, value)
	return serialized
}

func deserializeUint64(serialized []byte) (uint64, error) {
	if len(serialized) != 8 {
		return 0, errors.Errorf("serialized uint64 is %d bytes, want 8",
			len(serialized))
	}
	return binary.BigEndian.Uint64(serialized), nil
}

func serializeBlock(block *Block) []byte {
	serialized := make([]byte, serializedBlockLength)
	copy(serialized, block.Root[:])
	binary.BigEndian.PutUint64(serialized[merkle.HashSize:],
		uint64(timeToMilliseconds(block.Timestamp)))
	return serialized
}

func deserializeBlock(serialized []byte) (*Block, error) {
	if len(serialized) != serializedBlockLength {
		return nil, errors.Errorf("serialized block is %d bytes, want %d",
			len(serialized), serializedBlockLength)
	}
	block := &Block{}
	copy(block.Root[:], serialized[:merkle.HashSize])
	millis := int64(binary.BigEndian.Uint64(serialized[merkle.HashSize:]))
	block.Timestamp = timeFromMilliseconds(millis)
	return block, nil
}

// Timestamps are stored at millisecond precision.
func timeToMilliseconds(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

func timeFromMilliseconds(millis int64) time.Time {
	return time.Unix(0, millis*int64(time.Millisecond))
}

func serializeDeposit(deposit *depositRecord) []byte {
	serialized := make([]byte, serializedDepositLength)
	copy(serialized, deposit.Owner.Bytes())
	copy(serialized[common.AddressLength:], deposit.Token.Bytes())
	binary.BigEndian.PutUint64(serialized[2*common.AddressLength:], deposit.Value)
	return serialized
}

func deserializeDeposit(serialized []byte) (*depositRecord, error) {
	if len(serialized) != serializedDepositLength {
		return nil, errors.Errorf("serialized deposit is %d bytes, want %d",
			len(serialized), serializedDepositLength)
	}
	return &depositRecord{
		Owner: common.BytesToAddress(serialized[:common.AddressLength]),
		Token: common.BytesToAddress(serialized[common.AddressLength : 2*common.AddressLength]),
		Value: binary.BigEndian.Uint64(serialized[2*common.AddressLength:]),
	}, nil
}

func serializeExit(record *ExitRecord) []byte {
	serialized := make([]byte, serializedExitLength)
	copy(serialized, record.Owner.Bytes())
	copy(serialized[common.AddressLength:], record.Token.Bytes())
	offset := 2 * common.AddressLength
	binary.BigEndian.PutUint64(serialized[offset:], record.Value)
	binary.BigEndian.PutUint64(serialized[offset+8:],
		uint64(timeToMilliseconds(record.ExitableAt)))
	if record.Voided {
		serialized[offset+16] = 1
	}
	return serialized
}

func deserializeExit(serialized []byte) (*ExitRecord, error) {
	if len(serialized) != serializedExitLength {
		return nil, errors.Errorf("serialized exit is %d bytes, want %d",
			len(serialized), serializedExitLength)
	}
	offset := 2 * common.AddressLength
	return &ExitRecord{
		Owner:      common.BytesToAddress(serialized[:common.AddressLength]),
		Token:      common.BytesToAddress(serialized[common.AddressLength:offset]),
		Value:      binary.BigEndian.Uint64(serialized[offset:]),
		ExitableAt: timeFromMilliseconds(int64(binary.BigEndian.Uint64(serialized[offset+8:]))),
		Voided:     serialized[offset+16] == 1,
	}, nil
}

func serializeMetaState(meta *metaState) []byte {
	serialized := make([]byte, serializedMetaStateLength)
	binary.BigEndian.PutUint64(serialized, meta.currentChildBlock)
	binary.BigEndian.PutUint64(serialized[8:], meta.currentDepositIndex)
	binary.BigEndian.PutUint64(serialized[16:], meta.escrow)
	return serialized
}

func deserializeMetaState(serialized []byte) (*metaState, error) {
	if len(serialized) != serializedMetaStateLength {
		return nil, errors.Errorf("serialized ledger state is %d bytes, want %d",
			len(serialized), serializedMetaStateLength)
	}
	return &metaState{
		currentChildBlock:   binary.BigEndian.Uint64(serialized),
		currentDepositIndex: binary.BigEndian.Uint64(serialized[8:]),
		escrow:              binary.BigEndian.Uint64(serialized[16:]),
	}, nil
}
