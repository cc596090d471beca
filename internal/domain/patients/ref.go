package patients

import "context"

// RefOf expone el patientRef (ID de perfil) de un usuario autenticado.
// Se usa desde otros módulos para no acoplarlos al repositorio de perfiles.
func (s *Service) RefOf(ctx context.Context, userID string) (string, error) {
	p, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
