package records

import (
	"medical-record-access/internal/platform/fieldcrypto"
	"medical-record-access/internal/platform/logger"
)

// codec aplica el cifrado de campos en la frontera service<->repositorio.
// Reemplaza los hooks getter/setter del ORM original por una traducción
// explícita: Seal antes de escribir, Open después de leer.
type codec struct {
	cipher *fieldcrypto.Cipher
	log    logger.Logger
}

func (c codec) Seal(r Record) (Record, error) {
	var err error
	if r.Description, err = c.cipher.Encrypt(r.Description); err != nil {
		return Record{}, err
	}
	if r.Diagnosis, err = c.cipher.Encrypt(r.Diagnosis); err != nil {
		return Record{}, err
	}
	if r.Prescription, err = c.cipher.Encrypt(r.Prescription); err != nil {
		return Record{}, err
	}
	if r.Notes, err = c.cipher.Encrypt(r.Notes); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Open descifra campo por campo. Un blob corrupto degrada SOLO ese campo a
// vacío (con log); un histórico dañado no vuelve ilegible el registro entero
// ni el listado que lo contiene.
func (c codec) Open(r Record) Record {
	r.Description = c.openField(r.ID, "description", r.Description)
	r.Diagnosis = c.openField(r.ID, "diagnosis", r.Diagnosis)
	r.Prescription = c.openField(r.ID, "prescription", r.Prescription)
	r.Notes = c.openField(r.ID, "notes", r.Notes)
	return r
}

func (c codec) openField(recordID, field, blob string) string {
	plain, err := c.cipher.Decrypt(blob)
	if err != nil {
		c.log.Error("failed to decrypt field", map[string]any{
			"field":     field,
			"record_id": recordID,
			"error":     err.Error(),
		})
		return ""
	}
	return plain
}
